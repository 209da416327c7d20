package store

const (
	defaultRegion        = "us-east-1"
	defaultMaxRetries    = 3
	defaultTimeoutSecond = 3600
)

// Config configures the S3 compatible object store paks are pushed to and pulled from
type Config struct {
	Endpoint       string `mapstructure:"endpoint" validate:"omitempty,url"`
	Region         string `mapstructure:"region" validate:"required,min=1"`
	AccessKey      string `mapstructure:"access_key" validate:"required_with=SecretKey"`
	SecretKey      string `mapstructure:"secret_key" validate:"required_with=AccessKey"`
	MaxRetries     int    `mapstructure:"max_retries" validate:"min=0,max=10"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"min=1"`
	// Overwrite allows Push to replace an existing object
	Overwrite bool `mapstructure:"overwrite"`
}

// ApplyDefaults sets all config values to their defaults (if they have one)
func (c *Config) ApplyDefaults() {
	c.Region = defaultRegion
	c.MaxRetries = defaultMaxRetries
	c.TimeoutSeconds = defaultTimeoutSecond
}
