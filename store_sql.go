package querycache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// sqlStore keeps entries in a key/value table plus a tag join table. The
// expiry column stores Unix milliseconds, 0 meaning never.
type sqlStore struct {
	db         *sql.DB
	table      string
	tagTable   string
	driverName string
	prefix     string
	defaultTTL time.Duration

	getStmt      *sql.Stmt
	upsertStmt   *sql.Stmt
	deleteStmt   *sql.Stmt
	flushStmt    *sql.Stmt
	tagStmt      *sql.Stmt
	tagKeysStmt  *sql.Stmt
	tagClearStmt *sql.Stmt
}

var sqlIdentPartRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func newSQLStore(cfg StoreConfig) (*sqlStore, error) {
	if cfg.SQLDriverName == "" || cfg.SQLDSN == "" {
		return nil, errors.New("sql driver requires driver name and dsn")
	}
	db, err := sql.Open(cfg.SQLDriverName, cfg.SQLDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return newSQLStoreWithDB(db, cfg)
}

func newSQLStoreWithDB(db *sql.DB, cfg StoreConfig) (*sqlStore, error) {
	table := cfg.SQLTable
	if table == "" {
		table = "query_cache_entries"
	}
	if err := validateSQLTableName(table); err != nil {
		return nil, err
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultStoreTTL
	}
	s := &sqlStore{
		db:         db,
		table:      table,
		tagTable:   table + "_tags",
		driverName: cfg.SQLDriverName,
		prefix:     cfg.Prefix,
		defaultTTL: ttl,
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	if err := s.prepareStatements(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) Driver() Driver { return DriverSQL }

func (s *sqlStore) ensureSchema() error {
	var entries, tags string
	switch s.driverName {
	case "postgres", "pgx":
		entries = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BYTEA NOT NULL,
			ea BIGINT NOT NULL
		);`, s.table)
		tags = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			tag TEXT NOT NULL,
			k TEXT NOT NULL,
			PRIMARY KEY (tag, k)
		);`, s.tagTable)
	case "mysql":
		entries = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k VARBINARY(255) PRIMARY KEY,
			v LONGBLOB NOT NULL,
			ea BIGINT NOT NULL
		) ENGINE=InnoDB;`, s.table)
		tags = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			tag VARBINARY(255) NOT NULL,
			k VARBINARY(255) NOT NULL,
			PRIMARY KEY (tag, k)
		) ENGINE=InnoDB;`, s.tagTable)
	default: // sqlite
		entries = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			k TEXT PRIMARY KEY,
			v BLOB NOT NULL,
			ea INTEGER NOT NULL
		);`, s.table)
		tags = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			tag TEXT NOT NULL,
			k TEXT NOT NULL,
			PRIMARY KEY (tag, k)
		);`, s.tagTable)
	}
	if _, err := s.db.Exec(entries); err != nil {
		return err
	}
	_, err := s.db.Exec(tags)
	return err
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	var exp int64
	err := s.getStmt.QueryRowContext(ctx, s.cacheKey(key)).Scan(&v, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if exp > 0 && time.Now().UnixMilli() > exp {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	exp := time.Now().Add(ttl).UnixMilli()
	_, err := s.upsertStmt.ExecContext(ctx, s.cacheKey(key), value, exp, value, exp)
	return err
}

func (s *sqlStore) SetForever(ctx context.Context, key string, value []byte) error {
	_, err := s.upsertStmt.ExecContext(ctx, s.cacheKey(key), value, int64(0), value, int64(0))
	return err
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	_, err := s.deleteStmt.ExecContext(ctx, s.cacheKey(key))
	return err
}

func (s *sqlStore) Flush(ctx context.Context) error {
	if _, err := s.flushStmt.ExecContext(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tagTable))
	return err
}

// WithTags returns a view whose writes are indexed under tags.
func (s *sqlStore) WithTags(tags ...string) Store {
	return newTaggedStore(s, tags)
}

// FlushTag deletes entries joined to the tag, then the tag rows.
func (s *sqlStore) FlushTag(ctx context.Context, tag string) error {
	keys, err := s.tagKeys(ctx, tag)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
			return err
		}
	}
	_, err = s.tagClearStmt.ExecContext(ctx, tag)
	return err
}

func (s *sqlStore) tagKeys(ctx context.Context, tag string) ([]string, error) {
	rows, err := s.tagKeysStmt.QueryContext(ctx, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *sqlStore) recordTags(ctx context.Context, key string, tags []string) error {
	cacheKey := s.cacheKey(key)
	for _, tag := range tags {
		if _, err := s.tagStmt.ExecContext(ctx, tag, cacheKey); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqlStore) cacheKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *sqlStore) upsertSQL() string {
	// Placeholders must be positional for postgres/pgx.
	p1, p2, p3, p4, p5 := s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5)
	switch s.driverName {
	case "postgres", "pgx":
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON CONFLICT (k) DO UPDATE SET v = %s, ea = %s", s.table, p1, p2, p3, p4, p5)
	case "mysql":
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON DUPLICATE KEY UPDATE v = %s, ea = %s", s.table, p1, p2, p3, p4, p5)
	default: // sqlite
		return fmt.Sprintf("INSERT INTO %s (k, v, ea) VALUES (%s, %s, %s) ON CONFLICT(k) DO UPDATE SET v = %s, ea = %s", s.table, p1, p2, p3, p4, p5)
	}
}

func (s *sqlStore) tagInsertSQL() string {
	p1, p2 := s.ph(1), s.ph(2)
	switch s.driverName {
	case "postgres", "pgx":
		return fmt.Sprintf("INSERT INTO %s (tag, k) VALUES (%s, %s) ON CONFLICT DO NOTHING", s.tagTable, p1, p2)
	case "mysql":
		return fmt.Sprintf("INSERT IGNORE INTO %s (tag, k) VALUES (%s, %s)", s.tagTable, p1, p2)
	default: // sqlite
		return fmt.Sprintf("INSERT OR IGNORE INTO %s (tag, k) VALUES (%s, %s)", s.tagTable, p1, p2)
	}
}

func (s *sqlStore) prepareStatements() error {
	var err error
	if s.getStmt, err = s.db.Prepare(fmt.Sprintf("SELECT v, ea FROM %s WHERE k = %s", s.table, s.ph(1))); err != nil {
		return err
	}
	if s.upsertStmt, err = s.db.Prepare(s.upsertSQL()); err != nil {
		return err
	}
	if s.deleteStmt, err = s.db.Prepare(fmt.Sprintf("DELETE FROM %s WHERE k = %s", s.table, s.ph(1))); err != nil {
		return err
	}
	if s.flushStmt, err = s.db.Prepare(fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return err
	}
	if s.tagStmt, err = s.db.Prepare(s.tagInsertSQL()); err != nil {
		return err
	}
	if s.tagKeysStmt, err = s.db.Prepare(fmt.Sprintf("SELECT k FROM %s WHERE tag = %s", s.tagTable, s.ph(1))); err != nil {
		return err
	}
	if s.tagClearStmt, err = s.db.Prepare(fmt.Sprintf("DELETE FROM %s WHERE tag = %s", s.tagTable, s.ph(1))); err != nil {
		return err
	}
	return nil
}

func (s *sqlStore) ph(i int) string {
	if s.driverName == "postgres" || s.driverName == "pgx" {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

func validateSQLTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("sql table name is required")
	}
	for _, part := range strings.Split(name, ".") {
		if !sqlIdentPartRE.MatchString(part) {
			return fmt.Errorf("invalid sql table name %q", name)
		}
	}
	return nil
}
