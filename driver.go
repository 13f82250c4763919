package cachedemo

// Driver identifies cache backend.
type Driver string

const (
	DriverNull      Driver = "null"
	DriverMemory    Driver = "memory"
	DriverMemcached Driver = "memcached"
	DriverRedis     Driver = "redis"
	DriverDynamo    Driver = "dynamodb"
	DriverNATS      Driver = "nats"
	DriverSQL       Driver = "sql"
)

// ParseDriver maps a configured driver name onto a known Driver.
func ParseDriver(name string) (Driver, bool) {
	switch d := Driver(name); d {
	case DriverNull, DriverMemory, DriverMemcached, DriverRedis, DriverDynamo, DriverNATS, DriverSQL:
		return d, true
	default:
		return "", false
	}
}
