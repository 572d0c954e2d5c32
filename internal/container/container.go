package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/email-tracker/internal/auth"
	"github.com/serroba/email-tracker/internal/events"
	"github.com/serroba/email-tracker/internal/geoip"
	"github.com/serroba/email-tracker/internal/handlers"
	"github.com/serroba/email-tracker/internal/health"
	"github.com/serroba/email-tracker/internal/mailer"
	"github.com/serroba/email-tracker/internal/messaging"
	"github.com/serroba/email-tracker/internal/middleware"
	"github.com/serroba/email-tracker/internal/ratelimit"
	"github.com/serroba/email-tracker/internal/store"
	"github.com/serroba/email-tracker/internal/tracking"
	"go.uber.org/zap"
)

// ErrConfiguration is returned when a required setting is missing at startup.
var ErrConfiguration = errors.New("configuration error")

const consumerGroupName = "email-tracker"

// Options holds the server settings. Every option can also be set through a
// SERVICE_ prefixed environment variable.
type Options struct {
	Port          int           `default:"8888"                  help:"Port to listen on"                                 short:"p"`
	PublicURL     string        `default:"http://localhost:8888" help:"Public base URL used in pixel and report links"`
	DatabaseURL   string        `help:"PostgreSQL connection string (required)"                                    short:"d"`
	RedisAddr     string        `help:"Redis server address; empty keeps rate limits and events in process"        short:"r"`
	GeoIPPath     string        `default:"GeoLite2-City.mmdb"    help:"Path of the MaxMind city database (GEOIP_DATABASE_PATH overrides)"`
	JWTSecret     string        `help:"HS256 secret used to verify bearer tokens"`
	JWTIssuer     string        `default:"email-tracker"         help:"Expected bearer token issuer"`
	JWTTTL        time.Duration `default:"24h"                   help:"Lifetime of issued tokens"`
	SMTPHost      string        `help:"SMTP relay host; empty disables compose"`
	SMTPPort      int           `default:"587"                   help:"SMTP relay port"`
	SMTPUsername  string        `help:"SMTP username"`
	SMTPPassword  string        `help:"SMTP password"`
	SMTPFrom      string        `help:"Sender address of composed mail"`
	SMTPSkipTLS   bool          `help:"Skip SMTP TLS certificate verification"`
	CORSOrigins   string        `default:"*"                     help:"Comma separated allowed CORS origins"`
	RecordTimeout time.Duration `default:"5s"                    help:"Upper bound for recording one open"`
	LogFormat     string        `default:"json"                  help:"Log format: json or console"`
	LogLevel      string        `default:"info"                  help:"Log level"`
}

// Database owns the Postgres pool for the injector lifecycle.
type Database struct {
	*pgxpool.Pool
}

// Shutdown closes the pool.
func (d *Database) Shutdown() error {
	d.Close()

	return nil
}

// Redis owns the Redis client for the injector lifecycle.
type Redis struct {
	redis.UniversalClient
}

// Shutdown closes the client.
func (r *Redis) Shutdown() error {
	return r.Close()
}

// LoggerPackage registers the zap logger.
func LoggerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		cfg := zap.NewProductionConfig()
		if opts.LogFormat == "console" {
			cfg = zap.NewDevelopmentConfig()
		}

		level, err := zap.ParseAtomicLevel(opts.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: log level %q: %w", ErrConfiguration, opts.LogLevel, err)
		}

		cfg.Level = level

		return cfg.Build()
	})
}

// PostgresPackage registers the migrated connection pool.
func PostgresPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Database, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("%w: database url is required", ErrConfiguration)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres pool: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		if err := store.Migrate(ctx, pool, logger); err != nil {
			pool.Close()

			return nil, err
		}

		return &Database{Pool: pool}, nil
	})
}

// RedisEnabled reports whether a Redis address is configured.
func RedisEnabled(i *do.Injector) bool {
	return do.MustInvoke[*Options](i).RedisAddr != ""
}

// RedisPackage registers the Redis client. Only invoked when RedisEnabled.
func RedisPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*Redis, error) {
		opts := do.MustInvoke[*Options](i)

		return &Redis{UniversalClient: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// GeoIPPackage registers the location resolver.
func GeoIPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*geoip.Resolver, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return geoip.NewResolver(GeoIPPath(opts), logger.Named("geoip")), nil
	})
}

// RepositoryPackage registers the Postgres-backed repository.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (tracking.Repository, error) {
		return store.NewPostgresStore(do.MustInvoke[*Database](i).Pool), nil
	})
}

// PublisherGroupPackage registers the event publisher: Redis streams when
// Redis is configured, an in-process channel otherwise.
func PublisherGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return gochannel.NewGoChannel(gochannel.Config{}, messaging.NewZapLogger(logger)), nil
	})

	do.Provide(i, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		if !RedisEnabled(i) {
			return messaging.NewPublisherGroup(do.MustInvoke[*gochannel.GoChannel](i)), nil
		}

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
			Client: do.MustInvoke[*Redis](i).UniversalClient,
		}, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("create redis stream publisher: %w", err)
		}

		return messaging.NewPublisherGroup(publisher), nil
	})
}

// TrackingPackage registers the event store and the tracking service.
func TrackingPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*tracking.Service, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		publisher := do.MustInvoke[*messaging.PublisherGroup](i).Publisher()

		return tracking.NewService(
			tracking.NewEventStore(do.MustInvoke[tracking.Repository](i), tracking.NewID),
			do.MustInvoke[*geoip.Resolver](i),
			messaging.NewPublishFunc[events.SendLogged](publisher, events.TopicSendLogged),
			messaging.NewPublishFunc[events.OpenRecorded](publisher, events.TopicOpenRecorded),
			logger.Named("tracking"),
		), nil
	})
}

// RateLimitPackage registers the limiter, sharing counters through Redis when configured.
func RateLimitPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*ratelimit.Limiter, error) {
		var limitStore ratelimit.Store = store.NewRateLimitMemoryStore()
		if RedisEnabled(i) {
			limitStore = store.NewRateLimitRedisStore(do.MustInvoke[*Redis](i).UniversalClient)
		}

		return ratelimit.NewLimiter(limitStore, ratelimit.DefaultPolicy()), nil
	})
}

// MailerPackage registers the SMTP mailer.
func MailerPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*mailer.SMTPMailer, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return mailer.NewSMTPMailer(mailer.Config{
			Host:          opts.SMTPHost,
			Port:          opts.SMTPPort,
			Username:      opts.SMTPUsername,
			Password:      opts.SMTPPassword,
			From:          opts.SMTPFrom,
			SkipTLSVerify: opts.SMTPSkipTLS,
		}, logger.Named("mailer")), nil
	})
}

// HealthPackage registers the health handler over every configured dependency.
func HealthPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*health.Handler, error) {
		h := health.NewHandler(2 * time.Second)
		h.Add("postgres", do.MustInvoke[*Database](i).Pool, true)

		resolver := do.MustInvoke[*geoip.Resolver](i)
		h.Add("geoip", health.CheckFunc(func(context.Context) error { return resolver.HealthCheck() }), false)

		if RedisEnabled(i) {
			h.Add("redis", health.NewRedisChecker(do.MustInvoke[*Redis](i).UniversalClient), false)
		}

		return h, nil
	})
}

// HTTPPackage registers the router and the API with every route mounted.
func HTTPPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*chi.Mux, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		newRequestID, err := nanoid.Standard(21)
		if err != nil {
			return nil, fmt.Errorf("create request id generator: %w", err)
		}

		router := chi.NewMux()
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: strings.Split(opts.CORSOrigins, ","),
			AllowedMethods: []string{"GET", "HEAD", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
		router.Use(middleware.Metadata(newRequestID))

		service := do.MustInvoke[*tracking.Service](i)
		handlers.RegisterPixelRoute(router, handlers.NewPixelHandler(
			service, handlers.Assets(), opts.RecordTimeout, logger.Named("pixel"),
		))

		return router, nil
	})

	do.Provide(i, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)
		router := do.MustInvoke[*chi.Mux](i)
		service := do.MustInvoke[*tracking.Service](i)

		if opts.JWTSecret == "" {
			logger.Warn("no jwt secret configured, every caller is anonymous")
		}

		api := humachi.New(router, huma.DefaultConfig("Email Tracker", "1.0.0"))
		api.UseMiddleware(
			middleware.Authenticate(api, auth.NewTokens(opts.JWTSecret, opts.JWTIssuer, opts.JWTTTL), logger),
			middleware.RateLimiter(api, do.MustInvoke[*ratelimit.Limiter](i), logger),
		)

		handlers.RegisterRoutes(api,
			handlers.NewSendHandler(
				service, do.MustInvoke[*mailer.SMTPMailer](i), handlers.NewURLBuilder(opts.PublicURL), logger.Named("api"),
			),
			handlers.NewReportHandler(service.Store(), logger.Named("api")),
		)
		health.RegisterRoutes(api, do.MustInvoke[*health.Handler](i))

		return api, nil
	})
}

// ConsumerGroupPackage registers the consumers of tracking events, reading
// Redis streams when configured and the in-process channel otherwise.
func ConsumerGroupPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		subscriber, err := newSubscriber(i, messaging.NewZapLogger(logger))
		if err != nil {
			return nil, err
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		events.RegisterConsumers(group, subscriber, events.NewLogSink(logger.Named("events")), logger)

		return group, nil
	})
}

func newSubscriber(i *do.Injector, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	if !RedisEnabled(i) {
		return do.MustInvoke[*gochannel.GoChannel](i), nil
	}

	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        do.MustInvoke[*Redis](i).UniversalClient,
		ConsumerGroup: consumerGroupName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}

	return subscriber, nil
}
