package loader

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/texloader/texloader/pkg/configutils"
	"github.com/texloader/texloader/pkg/logging"
	"github.com/texloader/texloader/pkg/texture/cache"
	"github.com/texloader/texloader/pkg/texture/decode"
	"github.com/texloader/texloader/pkg/texture/fetch"
)

// ConfigKey is the root configuration key (in Viper) for the loader.
var ConfigKey = "loader"

// Fetcher performs the network transfer for remote identifiers. It exists as
// an interface so tests can count invocations; production wires
// *fetch.HTTPFetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string, onProgress fetch.ProgressFunc) ([]byte, error)
}

// Config holds the configuration and collaborators for the loader.
type Config struct {
	Logger  logging.Interface
	Fetcher Fetcher `validate:"required"`

	// Store is nil on platforms without writable local filesystem access;
	// the loader then behaves as if every request disabled the cache.
	Store *cache.Store

	// Transcoder is the optional compressed-texture capability. nil means
	// compressed-format requests fail fast.
	Transcoder decode.Transcoder

	// Raster defaults to decode.NewRaster; injectable for tests.
	Raster decode.BytesDecoder

	Metrics *Metrics

	// UseCache is the process-wide default for trying the cache before
	// fetching. Individual requests may override it unless Store is nil.
	UseCache bool `mapstructure:"use_cache"`

	// Coalesce collapses concurrent fetches for the same cache key into one
	// network transfer. Off by default: two concurrent requests for the same
	// identifier then fetch independently and the last cache write wins.
	Coalesce bool `mapstructure:"coalesce"`
}

// Option is a configuration option for the loader.
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
		UseCache: true,
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

// WithViper reads the configuration from the "loader" viper key on top of
// the defaults.
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

// WithStore sets the cache store. Pass nil for cacheless platforms.
func WithStore(store *cache.Store) Option {
	return func(c *Config) error {
		c.Store = store
		return nil
	}
}

// WithFetcher sets the network fetcher.
func WithFetcher(fetcher Fetcher) Option {
	return func(c *Config) error {
		c.Fetcher = fetcher
		return nil
	}
}

// WithTranscoder registers the compressed-texture capability.
func WithTranscoder(transcoder decode.Transcoder) Option {
	return func(c *Config) error {
		c.Transcoder = transcoder
		return nil
	}
}

// WithMetrics attaches prometheus metrics to the loader.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Config) error {
		c.Metrics = metrics
		return nil
	}
}

// WithCoalescing enables per-key fetch coalescing.
func WithCoalescing() Option {
	return func(c *Config) error {
		c.Coalesce = true
		return nil
	}
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}
