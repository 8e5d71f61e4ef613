package cache

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/texloader/texloader/pkg/logging"
)

type storeParams struct {
	fx.In

	Logger logging.Interface
}

// Module provides a *Store configured from the "cache" viper key.
var Module = fx.Provide(
	func(v *viper.Viper, params storeParams) (*Store, error) {
		config, err := NewConfig(
			WithViper(v),
			WithLogger(params.Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("error creating cache config: %+v", err)
		}

		return NewStore(config)
	})
