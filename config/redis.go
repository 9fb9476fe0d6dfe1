package config

// RedisConfig contains Redis configuration for session persistence.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`

	// Enabled controls whether session snapshots are persisted at all.
	// When false, sessions live only in process memory and do not
	// survive a gateway restart.
	Enabled bool `env:"ENABLED" envDefault:"true"`
}
