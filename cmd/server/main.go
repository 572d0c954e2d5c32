package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"github.com/serroba/email-tracker/internal/container"
	"github.com/serroba/email-tracker/internal/geoip"
	"github.com/serroba/email-tracker/internal/messaging"
	"go.uber.org/zap"
)

func registerPackages(injector *do.Injector, options *container.Options) {
	do.ProvideValue(injector, options)
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.PostgresPackage(injector)
	container.GeoIPPackage(injector)
	container.RepositoryPackage(injector)
	container.PublisherGroupPackage(injector)
	container.TrackingPackage(injector)
	container.RateLimitPackage(injector)
	container.MailerPackage(injector)
	container.HealthPackage(injector)
	container.HTTPPackage(injector)
	container.ConsumerGroupPackage(injector)
}

// reloadOnHangup re-reads .env on SIGHUP and points the resolver at the
// database path resolved the same way as at startup.
func reloadOnHangup(ctx context.Context, opts *container.Options, resolver *geoip.Resolver, logger *zap.Logger) {
	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)

	go func() {
		defer signal.Stop(hangup)

		for {
			select {
			case <-ctx.Done():
				return
			case <-hangup:
				if err := godotenv.Overload(); err != nil {
					logger.Debug("no .env file to reload", zap.Error(err))
				}

				if path := container.GeoIPPath(opts); path != resolver.Path() {
					resolver.SetPath(path)
					logger.Info("geoip path updated", zap.String("path", path))
				}
			}
		}
	}()
}

func main() {
	_ = godotenv.Load()

	cli := humacli.New(func(hooks humacli.Hooks, options *container.Options) {
		injector := do.New()
		registerPackages(injector, options)

		logger := do.MustInvoke[*zap.Logger](injector)

		var (
			server *http.Server
			cancel context.CancelFunc = func() {}
		)

		hooks.OnStart(func() {
			var ctx context.Context

			ctx, cancel = context.WithCancel(context.Background())

			if _, err := do.Invoke[*container.Database](injector); err != nil {
				logger.Fatal("database unavailable", zap.Error(err))
			}

			router := do.MustInvoke[*chi.Mux](injector)

			// Invoke API to trigger route registration
			_ = do.MustInvoke[huma.API](injector)

			reloadOnHangup(ctx, options, do.MustInvoke[*geoip.Resolver](injector), logger)

			if !container.RedisEnabled(injector) {
				group := do.MustInvoke[*messaging.ConsumerGroup](injector)
				if err := group.Start(ctx); err != nil {
					logger.Fatal("failed to start in-process consumers", zap.Error(err))
				}
			}

			server = &http.Server{
				Addr:              fmt.Sprintf(":%d", options.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			logger.Info("server starting",
				zap.Int("port", options.Port),
				zap.String("public_url", options.PublicURL),
			)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("server failed", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			logger.Info("shutting down")

			ctx, stop := context.WithTimeout(context.Background(), 30*time.Second)
			defer stop()

			if server != nil {
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("server shutdown error", zap.Error(err))
				}
			}

			cancel()

			if err := injector.Shutdown(); err != nil {
				logger.Error("service shutdown error", zap.Error(err))
			}

			logger.Info("shutdown complete")
			_ = logger.Sync()
		})
	})

	cli.Run()
}
