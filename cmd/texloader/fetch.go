package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/texloader/texloader/pkg/configutils"
	"github.com/texloader/texloader/pkg/logging"
	"github.com/texloader/texloader/pkg/texture/cache"
	"github.com/texloader/texloader/pkg/texture/fetch"
	"github.com/texloader/texloader/pkg/texture/loader"
)

func newFetchCommand() *cobra.Command {
	var configFilePath string
	var debug bool
	var noCache bool
	var linearColor bool

	cmd := &cobra.Command{
		Use:   "fetch <identifier>",
		Short: "Resolve one texture identifier through the cache-or-download pipeline",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runFetch(args[0], configFilePath, debug, noCache, linearColor)
		},
	}

	cmd.Flags().StringVarP(&configFilePath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the cache lookup for this request")
	cmd.Flags().BoolVar(&linearColor, "linear", false, "decode into linear color space")

	return cmd
}

func runFetch(identifier, configFilePath string, debug, noCache, linearColor bool) {
	app := fx.New(
		provideViper(configFilePath, debug),
		logging.Module,
		cache.Module,
		fetch.Module,
		loader.Module,
		fx.Provide(func() *loader.Metrics {
			return loader.NewMetrics(prometheus.DefaultRegisterer)
		}),
		fx.Invoke(func(lc fx.Lifecycle, l *loader.Loader, log logging.Interface, sh fx.Shutdowner) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						if err := resolveTexture(l, identifier, noCache, linearColor); err != nil {
							log.WithError(err).WithField("identifier", identifier).Error("texture request failed")
							os.Exit(1)
						}
						if err := sh.Shutdown(); err != nil {
							log.WithError(err).Error("failed to shut down")
						}
					}()
					return nil
				},
			})
		}),
		fx.NopLogger,
	)

	app.Run()
	if err := app.Stop(context.Background()); err != nil {
		return
	}
}

// provideViper builds the viper instance from defaults, an optional config
// file, and TEXLOADER_* env overrides.
func provideViper(configFilePath string, debug bool) fx.Option {
	return fx.Provide(func() (*viper.Viper, error) {
		v := viper.New()

		v.SetEnvPrefix("TEXLOADER")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		v.SetDefault("cache.root", defaultCacheRoot())
		if debug {
			v.Set("logging.debug", true)
		}

		if configFilePath != "" {
			if err := configutils.ResolveAndMergeFile(v, configFilePath); err != nil {
				return nil, fmt.Errorf("cannot read config file: %w", err)
			}
		}

		return v, nil
	})
}

func defaultCacheRoot() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "texloader", "textures")
}

// resolveTexture runs one request to completion, rendering transfer progress
// on a terminal progress bar.
func resolveTexture(l *loader.Loader, identifier string, noCache, linearColor bool) error {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription(cache.Key(identifier)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)

	opts := []loader.RequestOption{
		loader.WithLinearColorSpace(linearColor),
	}
	if noCache {
		opts = append(opts, loader.WithUseCache(false))
	}

	handle := l.Request(context.Background(), identifier, loader.Callbacks{
		OnProgress: func(fraction float64) {
			_ = bar.Set(int(fraction * 100))
		},
	}, opts...)

	outcome, ok := <-handle.Outcome()
	_ = bar.Finish()

	if !ok {
		return fmt.Errorf("request for %s was cancelled", identifier)
	}
	if outcome.Err != nil {
		return outcome.Err
	}

	img := outcome.Image
	fmt.Printf("%s: %dx%d, %d pixel bytes\n", outcome.ResolvedPath, img.Width, img.Height, len(img.Pixels))
	if img.Orientation.XFlipped || img.Orientation.YFlipped {
		fmt.Printf("orientation: xFlipped=%v yFlipped=%v\n", img.Orientation.XFlipped, img.Orientation.YFlipped)
	}

	return nil
}
