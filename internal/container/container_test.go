package container_test

import (
	"testing"

	"github.com/samber/do"
	"github.com/serroba/email-tracker/internal/container"
	"github.com/serroba/email-tracker/internal/geoip"
	"github.com/serroba/email-tracker/internal/messaging"
	"github.com/serroba/email-tracker/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInjector(opts *container.Options) *do.Injector {
	injector := do.New()
	do.ProvideValue(injector, opts)
	container.LoggerPackage(injector)
	container.PostgresPackage(injector)
	container.RedisPackage(injector)
	container.GeoIPPackage(injector)
	container.PublisherGroupPackage(injector)
	container.RateLimitPackage(injector)
	container.ConsumerGroupPackage(injector)

	return injector
}

func TestPostgresPackage(t *testing.T) {
	injector := newInjector(&container.Options{LogFormat: "json", LogLevel: "info"})

	_, err := do.Invoke[*container.Database](injector)

	assert.ErrorIs(t, err, container.ErrConfiguration)
}

func TestLoggerPackage(t *testing.T) {
	t.Run("builds from options", func(t *testing.T) {
		injector := newInjector(&container.Options{LogFormat: "console", LogLevel: "debug"})

		logger, err := do.Invoke[*zap.Logger](injector)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	})

	t.Run("rejects an unknown level", func(t *testing.T) {
		injector := newInjector(&container.Options{LogFormat: "json", LogLevel: "loud"})

		_, err := do.Invoke[*zap.Logger](injector)
		assert.ErrorIs(t, err, container.ErrConfiguration)
	})
}

func TestInProcessPackages(t *testing.T) {
	injector := newInjector(&container.Options{LogFormat: "json", LogLevel: "info", GeoIPPath: "missing.mmdb"})
	t.Cleanup(func() { _ = injector.Shutdown() })

	assert.False(t, container.RedisEnabled(injector))

	publishers, err := do.Invoke[*messaging.PublisherGroup](injector)
	require.NoError(t, err)
	assert.NotNil(t, publishers.Publisher())

	group, err := do.Invoke[*messaging.ConsumerGroup](injector)
	require.NoError(t, err)
	assert.Same(t, publishers.Publisher(), group.Subscriber())

	_, err = do.Invoke[*ratelimit.Limiter](injector)
	require.NoError(t, err)

	resolver, err := do.Invoke[*geoip.Resolver](injector)
	require.NoError(t, err)
	assert.Equal(t, "missing.mmdb", resolver.Path())
}

func TestGeoIPPackage(t *testing.T) {
	t.Run("uses the configured path", func(t *testing.T) {
		t.Setenv(container.GeoIPPathEnv, "")
		opts := &container.Options{LogFormat: "json", LogLevel: "info", GeoIPPath: "configured.mmdb"}

		resolver, err := do.Invoke[*geoip.Resolver](newInjector(opts))
		require.NoError(t, err)
		assert.Equal(t, "configured.mmdb", resolver.Path())
		assert.Equal(t, resolver.Path(), container.GeoIPPath(opts))
	})

	t.Run("environment overrides the option at startup and on reload", func(t *testing.T) {
		t.Setenv(container.GeoIPPathEnv, "override.mmdb")
		opts := &container.Options{LogFormat: "json", LogLevel: "info", GeoIPPath: "configured.mmdb"}

		resolver, err := do.Invoke[*geoip.Resolver](newInjector(opts))
		require.NoError(t, err)
		assert.Equal(t, "override.mmdb", resolver.Path())

		t.Setenv(container.GeoIPPathEnv, "")
		assert.Equal(t, "configured.mmdb", container.GeoIPPath(opts))
	})
}
