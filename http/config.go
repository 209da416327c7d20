package http

const (
	defaultHTTPPort       = 7655
	defaultBytesPerSecond = 50 * 1024 * 1024
)

// Config configures the pak server
type Config struct {
	Port                 int      `mapstructure:"port" validate:"gte=0,lte=65535"`
	Host                 string   `mapstructure:"host"`
	AuthenticationTokens []string `mapstructure:"tokens" validate:"required,min=1,dive,min=8"`
	// SpeedBytesPerSecond limits the speed pak content is served with, zero or less is unlimited
	SpeedBytesPerSecond int64 `mapstructure:"bytes_per_second"`
	// AllowSpeedOverride allows clients to pick their own speed with the bytesPerSecond parameter
	AllowSpeedOverride bool `mapstructure:"allow_speed_override"`
}

// ApplyDefaults sets all config values to their defaults (if they have one)
func (c *Config) ApplyDefaults() {
	c.SpeedBytesPerSecond = defaultBytesPerSecond
	c.Port = defaultHTTPPort
}
