package fetch

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/texloader/texloader/pkg/logging"
)

type fetcherParams struct {
	fx.In

	Logger logging.Interface
}

// Module provides an *HTTPFetcher configured from the "fetch" viper key.
var Module = fx.Provide(
	func(v *viper.Viper, params fetcherParams) (*HTTPFetcher, error) {
		config, err := NewConfig(
			WithViper(v),
			WithLogger(params.Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating fetch config: %+v", err)
		}

		return NewFetcher(config)
	})
