package handlers_test

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/email-tracker/internal/auth"
	"github.com/serroba/email-tracker/internal/events"
	"github.com/serroba/email-tracker/internal/geoip"
	"github.com/serroba/email-tracker/internal/handlers"
	"github.com/serroba/email-tracker/internal/mailer"
	"github.com/serroba/email-tracker/internal/messaging"
	"github.com/serroba/email-tracker/internal/middleware"
	"github.com/serroba/email-tracker/internal/tracking"
	"go.uber.org/zap"
)

const (
	publicURL  = "https://t.example.com"
	testSecret = "0123456789abcdef0123456789abcdef"
)

var errDatabaseDown = errors.New("database down")

// stubLocator resolves every address to the same place.
type stubLocator struct{}

func (stubLocator) Resolve(ip string) geoip.Result {
	if ip == "" {
		return geoip.Result{Reason: geoip.ReasonNoAddress}
	}

	return geoip.Result{Reason: geoip.ReasonResolved, City: "Springfield", Country: "Freedonia"}
}

// failingRepository fails every call.
type failingRepository struct{}

func (failingRepository) InsertSend(context.Context, *tracking.SendEvent) error {
	return errDatabaseDown
}

func (failingRepository) AppendOpen(context.Context, tracking.ID, *tracking.OpenEvent) error {
	return errDatabaseDown
}

func (failingRepository) FindSendForOwner(context.Context, tracking.ID, tracking.OwnerID) (*tracking.Report, error) {
	return nil, errDatabaseDown
}

func (failingRepository) ListSendsForOwner(
	context.Context, tracking.OwnerID, int, int,
) ([]tracking.SendEvent, int, error) {
	return nil, 0, errDatabaseDown
}

func (failingRepository) DeleteSend(context.Context, tracking.ID, tracking.OwnerID) error {
	return errDatabaseDown
}

// fakeMailer records sent messages.
type fakeMailer struct {
	disabled bool
	err      error
	sent     []mailer.Message
}

func (f *fakeMailer) Enabled() bool {
	return !f.disabled
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	if f.err != nil {
		return f.err
	}

	f.sent = append(f.sent, msg)

	return nil
}

func newTestService(repo tracking.Repository) *tracking.Service {
	return tracking.NewService(
		tracking.NewEventStore(repo, tracking.NewID),
		stubLocator{},
		messaging.Discard[events.SendLogged](),
		messaging.Discard[events.OpenRecorded](),
		zap.NewNop(),
	)
}

func withCaller(owner tracking.OwnerID, ip string) context.Context {
	ctx := middleware.ContextWithRequestMeta(context.Background(), middleware.RequestMeta{ClientIP: ip})

	return auth.WithOwner(ctx, owner)
}

type testServer struct {
	router  *chi.Mux
	service *tracking.Service
	tokens  *auth.Tokens
	mailer  *fakeMailer
}

func newTestServer(repo tracking.Repository) *testServer {
	service := newTestService(repo)
	tokens := auth.NewTokens(testSecret, "email-tracker", time.Hour)
	m := &fakeMailer{}

	router := chi.NewMux()
	router.Use(middleware.Metadata(func() string { return "req-1" }))

	handlers.RegisterPixelRoute(router,
		handlers.NewPixelHandler(service, handlers.Assets(), time.Second, zap.NewNop()))

	api := humachi.New(router, huma.DefaultConfig("Test", "1.0.0"))
	api.UseMiddleware(middleware.Authenticate(api, tokens, zap.NewNop()))

	urls := handlers.NewURLBuilder(publicURL)
	handlers.RegisterRoutes(api,
		handlers.NewSendHandler(service, m, urls, zap.NewNop()),
		handlers.NewReportHandler(service.Store(), zap.NewNop()),
	)

	return &testServer{router: router, service: service, tokens: tokens, mailer: m}
}
