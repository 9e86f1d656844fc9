package querycache

import "context"

// Query describes the semantic identity of a read query. Two Query values
// reporting the same connection, compiled text, and bindings are treated as
// the same query regardless of which object produced them.
type Query interface {
	// Connection identifies the database connection the query runs against.
	Connection() string

	// SQL returns the compiled textual form of the query.
	SQL() string

	// Bindings returns the positional parameter values in bind order.
	Bindings() []any
}

// ExecFunc runs the query and returns its serialized result set. The cache
// layer invokes it on a miss and never retries or times it out.
type ExecFunc func(ctx context.Context) ([]byte, error)

// StaticQuery is a ready-made Query for callers that already hold the
// compiled text and bindings.
type StaticQuery struct {
	Conn string
	Text string
	Args []any
}

func (q StaticQuery) Connection() string { return q.Conn }
func (q StaticQuery) SQL() string        { return q.Text }
func (q StaticQuery) Bindings() []any    { return q.Args }
