package container

import (
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/handlers"
	"github.com/serroba/shortlinks/internal/health"
	"github.com/serroba/shortlinks/internal/links"
	"github.com/serroba/shortlinks/internal/metrics"
	"github.com/serroba/shortlinks/internal/middleware"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"github.com/serroba/shortlinks/internal/token"
	"go.uber.org/zap"
)

// HTTPPackage provides the router and the huma API with every route
// registered. /metrics is served by the router outside huma.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Handle("/metrics", do.MustInvoke[*metrics.Metrics](i).Handler())

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		codec := do.MustInvoke[*token.Codec](i)

		api := humachi.New(do.MustInvoke[*chi.Mux](i), huma.DefaultConfig("Shortlinks", "1.0.0"))
		api.UseMiddleware(
			m.Middleware(),
			middleware.RequestMeta(api),
			middleware.Authenticate(api, codec, m, logger),
			middleware.PolicyRateLimiter(
				api,
				do.MustInvoke[*ratelimit.PolicyLimiter](i),
				ratelimit.NewOperationScopeResolver(),
				logger,
			),
		)

		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d", opts.Port)
		}

		users := handlers.NewUserHandler(
			do.MustInvoke[*auth.Service](i),
			codec,
			do.MustInvoke[*ratelimit.SlidingWindowLimiter](i),
			m,
			logger,
		)
		linkHandler := handlers.NewLinkHandler(
			do.MustInvoke[*links.Service](i),
			baseURL,
			do.MustInvoke[*analytics.Publishers](i),
			m,
			logger,
		)

		handlers.RegisterRoutes(api, users, linkHandler)
		health.RegisterRoutes(api, health.NewHandler(healthChecks(i, opts)))

		return api, nil
	})
}

func healthChecks(i *do.Injector, opts *Options) map[string]health.Checker {
	checks := make(map[string]health.Checker)

	if opts.Storage == StorageRedis || opts.Analytics {
		checks["redis"] = health.NewRedisChecker(do.MustInvoke[*redis.Client](i))
	}

	if opts.Storage == StoragePostgres {
		checks["postgres"] = health.NewPostgresChecker(do.MustInvoke[*pgxpool.Pool](i))
	}

	return checks
}
