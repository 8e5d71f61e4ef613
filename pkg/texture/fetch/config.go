package fetch

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/texloader/texloader/pkg/configutils"
	"github.com/texloader/texloader/pkg/logging"
)

// ConfigKey is the root configuration key (in Viper) for the fetcher.
var ConfigKey = "fetch"

const (
	// DefaultTimeout bounds a whole transfer, headers included.
	DefaultTimeout = 2 * time.Minute

	// DefaultChunkSize is the read-buffer size used while streaming a body.
	// Progress is reported at most once per chunk.
	DefaultChunkSize int64 = 32 * 1024

	// DefaultUserAgent identifies this client to remote servers.
	DefaultUserAgent = "texloader/1.0"
)

// Config holds the configuration for the HTTP fetcher.
type Config struct {
	Logger logging.Interface

	Timeout   time.Duration `mapstructure:"timeout"`
	ChunkSize int64         `mapstructure:"chunk_size" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Option is a configuration option for the fetcher.
type Option func(*Config) error

// Apply applies the given options to the configuration.
func (c *Config) Apply(opts ...Option) error {
	for _, o := range opts {
		if o == nil {
			continue
		}

		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Timeout:   DefaultTimeout,
		ChunkSize: DefaultChunkSize,
		UserAgent: DefaultUserAgent,
	}
}

// NewConfig builds and returns a new configuration from the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := defaultConfig()
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// WithViper reads the configuration from the "fetch" viper key on top of the
// defaults.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error occurred when binding environment variables: %+v", err)
		}

		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error occurred when unmarshalling config: %+v", err)
		}

		return nil
	}
}

// WithLogger sets the logger for the configuration.
func WithLogger(logger logging.Interface) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
