package loader

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/texloader/texloader/pkg/logging"
	"github.com/texloader/texloader/pkg/texture/cache"
	"github.com/texloader/texloader/pkg/texture/decode"
	"github.com/texloader/texloader/pkg/texture/fetch"
)

type loaderParams struct {
	fx.In

	Logger     logging.Interface
	Fetcher    *fetch.HTTPFetcher
	Store      *cache.Store       `optional:"true"`
	Transcoder decode.Transcoder  `optional:"true"`
	Metrics    *Metrics           `optional:"true"`
}

// Module provides a *Loader configured from the "loader" viper key. The
// cache store, transcoder, and metrics are optional dependencies: platforms
// without local filesystem access simply omit cache.Module, and deployments
// without a transcoder omit registering one.
var Module = fx.Provide(
	func(v *viper.Viper, params loaderParams) (*Loader, error) {
		config, err := NewConfig(
			WithViper(v),
			WithLogger(params.Logger),
			WithStore(params.Store),
			WithFetcher(params.Fetcher),
			WithTranscoder(params.Transcoder),
			WithMetrics(params.Metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating loader config: %+v", err)
		}

		return NewLoader(config)
	})
