package querycache

// Driver identifies a cache backend.
type Driver string

const (
	DriverNull   Driver = "null"
	DriverFile   Driver = "file"
	DriverMemory Driver = "memory"
	DriverRedis  Driver = "redis"
	DriverNATS   Driver = "nats"
	DriverDynamo Driver = "dynamodb"
	DriverSQL    Driver = "sql"
)
