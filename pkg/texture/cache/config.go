package cache

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/texloader/texloader/pkg/configutils"
	"github.com/texloader/texloader/pkg/logging"
)

// ConfigKey is the root configuration key (in Viper) for the cache store.
var ConfigKey = "cache"

// Config holds the configuration for the cache store.
type Config struct {
	Logger logging.Interface
	Fs     afero.Fs

	// Root is the directory that holds all cached texture files. It is
	// created lazily on the first write.
	Root string `mapstructure:"root" validate:"required"`
}

// Option is a configuration option for the cache store.
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

// NewConfig builds and returns a new configuration from the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// WithViper reads the configuration from the "cache" viper key.
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

// WithRoot sets the cache root directory.
func WithRoot(root string) Option {
	return func(c *Config) error {
		c.Root = root
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

// WithFs sets the filesystem used by the store. Defaults to the OS
// filesystem; tests inject an in-memory one.
func WithFs(fs afero.Fs) Option {
	return func(c *Config) error {
		c.Fs = fs
		return nil
	}
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
