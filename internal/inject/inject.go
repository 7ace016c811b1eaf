package inject

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/promptgrid/internal/batch"
	"github.com/dmorgan81/promptgrid/internal/config"
	"github.com/dmorgan81/promptgrid/internal/handler"
	"github.com/dmorgan81/promptgrid/internal/image"
	"github.com/dmorgan81/promptgrid/internal/log"
	"github.com/dmorgan81/promptgrid/internal/metrics"
	"github.com/dmorgan81/promptgrid/internal/page"
	"github.com/dmorgan81/promptgrid/internal/param"
	"github.com/dmorgan81/promptgrid/internal/seed"
	"github.com/dmorgan81/promptgrid/internal/server"
	"github.com/samber/do"
)

func Setup(ctx context.Context, cfg *config.Config) *do.Injector {
	log := log.FromContextOrDiscard(ctx)

	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)

	// AWS is only touched when the fal key has to come from Parameter Store.
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.ProvideNamed[string](injector, "fal_key", func(i *do.Injector) (string, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.FalKey != "" {
			return cfg.FalKey, nil
		}
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, cfg.FalKeyParam)
	})

	do.ProvideValue[*http.Client](injector, http.DefaultClient)
	do.ProvideValue(injector, metrics.New())
	do.Provide[seed.Seeder](injector, seed.NewRandomizer)
	do.Provide[image.Generator](injector, func(i *do.Injector) (image.Generator, error) {
		gen, err := image.NewFalGenerator(i)
		if err != nil {
			return nil, err
		}
		return do.MustInvoke[*metrics.Metrics](i).Instrument(gen), nil
	})
	do.Provide(injector, batch.NewOrchestrator)

	do.ProvideNamed[page.Params](injector, "page_params", func(i *do.Injector) (page.Params, error) {
		return page.DefaultParams(do.MustInvoke[*config.Config](i), handler.GeneratePath, batch.Size), nil
	})
	do.Provide(injector, page.NewTemplator)
	do.Provide(injector, handler.NewHandler)
	do.Provide(injector, server.NewServer)

	return injector
}

// Logger returns the logger the injector was set up with.
func Logger(i *do.Injector) *slog.Logger {
	return do.MustInvoke[*slog.Logger](i)
}
