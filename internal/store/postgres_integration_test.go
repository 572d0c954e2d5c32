//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/email-tracker/internal/store"
	"github.com/serroba/email-tracker/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "tracker",
				"POSTGRES_PASSWORD": "tracker",
				"POSTGRES_DB":       "tracker",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("PostgreSQL container not available: %v", err)
	}

	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://tracker:tracker@%s:%s/tracker?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	require.NoError(t, store.Migrate(ctx, pool, zap.NewNop()))

	return pool
}

func TestPostgresStoreIntegration(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t)
	s := store.NewPostgresStore(pool)
	events := tracking.NewEventStore(s, tracking.NewID)

	t.Run("send, open and report", func(t *testing.T) {
		id, err := events.RecordSend(ctx, tracking.NewSend{Subject: "Hello", Owner: "owner-1"})
		require.NoError(t, err)

		for range 3 {
			require.NoError(t, events.RecordOpen(ctx, id, tracking.NewOpen{OpenerIP: "1.2.3.4"}))
		}

		report, err := events.GetReport(ctx, id, "owner-1")
		require.NoError(t, err)

		assert.Equal(t, "Hello", report.Send.Subject)
		assert.Empty(t, report.Send.RecipientEmail)
		require.Len(t, report.Opens, 3)
		assert.Equal(t, tracking.UnknownUserAgent, report.Opens[0].UserAgent)

		for i := 1; i < len(report.Opens); i++ {
			assert.False(t, report.Opens[i].OpenedAt.Before(report.Opens[i-1].OpenedAt))
		}
	})

	t.Run("open for unknown identifier", func(t *testing.T) {
		err := events.RecordOpen(ctx, tracking.NewID(), tracking.NewOpen{})

		require.ErrorIs(t, err, tracking.ErrNotFound)
	})

	t.Run("duplicate identifier is a storage failure", func(t *testing.T) {
		fixed := tracking.NewID()
		dup := tracking.NewEventStore(s, func() tracking.ID { return fixed })

		_, err := dup.RecordSend(ctx, tracking.NewSend{})
		require.NoError(t, err)

		_, err = dup.RecordSend(ctx, tracking.NewSend{})
		require.ErrorIs(t, err, tracking.ErrStorage)
		require.ErrorIs(t, err, tracking.ErrDuplicateID)
	})

	t.Run("delete cascades to opens", func(t *testing.T) {
		id, err := events.RecordSend(ctx, tracking.NewSend{Owner: "owner-2"})
		require.NoError(t, err)
		require.NoError(t, events.RecordOpen(ctx, id, tracking.NewOpen{}))

		require.NoError(t, events.DeleteSend(ctx, id, "owner-2"))

		var opens int

		err = pool.QueryRow(ctx, `
			SELECT COUNT(*) FROM email_opens o
			LEFT JOIN sent_emails s ON s.id = o.sent_email_id
			WHERE s.id IS NULL`).Scan(&opens)
		require.NoError(t, err)
		assert.Zero(t, opens)

		_, err = events.GetReport(ctx, id, "owner-2")
		require.ErrorIs(t, err, tracking.ErrNotFound)
	})

	t.Run("lists owner's sends most recent first", func(t *testing.T) {
		for range 3 {
			_, err := events.RecordSend(ctx, tracking.NewSend{Owner: "owner-3"})
			require.NoError(t, err)
		}

		page, err := events.ListForOwner(ctx, "owner-3", 1, 2)
		require.NoError(t, err)

		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 2, page.Pages())
		require.Len(t, page.Items, 2)
		assert.False(t, page.Items[0].CreatedAt.Before(page.Items[1].CreatedAt))
	})
}
