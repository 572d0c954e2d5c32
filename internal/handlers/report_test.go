package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/serroba/email-tracker/internal/handlers"
	"github.com/serroba/email-tracker/internal/store"
	"github.com/serroba/email-tracker/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func logSend(t *testing.T, srv *testServer, owner tracking.OwnerID, subject string) tracking.ID {
	t.Helper()

	id, err := srv.service.LogSend(context.Background(), tracking.SendRequest{Subject: subject, Owner: owner})
	require.NoError(t, err)

	return id
}

func TestReportHandler_GetReport(t *testing.T) {
	t.Run("owner sees the report with opens", func(t *testing.T) {
		srv := newTestServer(store.NewMemoryStore())
		id := logSend(t, srv, "owner-1", "Hello")

		for range 2 {
			fetchPixel(srv.router, http.MethodGet, "/track/open/"+id.String()+".gif", map[string]string{"User-Agent": "Mail/1.0"})
		}

		w := srv.do(t, http.MethodGet, "/api/reports/"+id.String(), nil, srv.token(t, "owner-1"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body struct {
			Send       handlers.SendBody   `json:"send"`
			TotalOpens int                 `json:"total_opens"`
			Opens      []handlers.OpenBody `json:"opens"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

		assert.Equal(t, id.String(), body.Send.TrackingID)
		assert.Equal(t, "Hello", body.Send.Subject)
		assert.Equal(t, 2, body.TotalOpens)
		require.Len(t, body.Opens, 2)
		assert.Equal(t, "Mail/1.0", body.Opens[0].UserAgent)
		assert.False(t, body.Opens[1].OpenedAt.Before(body.Opens[0].OpenedAt))
	})

	t.Run("another owner gets 404", func(t *testing.T) {
		srv := newTestServer(store.NewMemoryStore())
		id := logSend(t, srv, "owner-1", "Hello")

		w := srv.do(t, http.MethodGet, "/api/reports/"+id.String(), nil, srv.token(t, "owner-2"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("anonymous callers get 401", func(t *testing.T) {
		srv := newTestServer(store.NewMemoryStore())
		id := logSend(t, srv, "owner-1", "Hello")

		w := srv.do(t, http.MethodGet, "/api/reports/"+id.String(), nil, "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed identifiers get 404", func(t *testing.T) {
		h := handlers.NewReportHandler(newTestService(store.NewMemoryStore()).Store(), zap.NewNop())

		_, err := h.GetReport(withCaller("owner-1", ""), &handlers.TrackingIDParam{TrackingID: "nope"})

		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("unknown identifiers get 404", func(t *testing.T) {
		h := handlers.NewReportHandler(newTestService(store.NewMemoryStore()).Store(), zap.NewNop())

		_, err := h.GetReport(withCaller("owner-1", ""), &handlers.TrackingIDParam{TrackingID: tracking.NewID().String()})

		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})

	t.Run("storage failure gets 503", func(t *testing.T) {
		h := handlers.NewReportHandler(newTestService(failingRepository{}).Store(), zap.NewNop())

		_, err := h.GetReport(withCaller("owner-1", ""), &handlers.TrackingIDParam{TrackingID: tracking.NewID().String()})

		assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))
	})
}

func TestReportHandler_ListSends(t *testing.T) {
	t.Run("pages most recent first", func(t *testing.T) {
		srv := newTestServer(store.NewMemoryStore())

		for i := range 5 {
			logSend(t, srv, "owner-1", fmt.Sprintf("subject-%d", i))
		}

		logSend(t, srv, "owner-2", "someone else")

		h := handlers.NewReportHandler(srv.service.Store(), zap.NewNop())

		first, err := h.ListSends(withCaller("owner-1", ""), &handlers.ListSendsRequest{Page: 1, PageSize: 2})
		require.NoError(t, err)

		assert.Equal(t, 5, first.Body.Total)
		assert.Equal(t, 3, first.Body.Pages)
		assert.Equal(t, 1, first.Body.Page)
		assert.Equal(t, 2, first.Body.PageSize)
		require.Len(t, first.Body.Items, 2)
		assert.Equal(t, "subject-4", first.Body.Items[0].Subject)
		assert.Equal(t, "subject-3", first.Body.Items[1].Subject)

		last, err := h.ListSends(withCaller("owner-1", ""), &handlers.ListSendsRequest{Page: 3, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, last.Body.Items, 1)
		assert.Equal(t, "subject-0", last.Body.Items[0].Subject)
	})

	t.Run("defaults apply over http", func(t *testing.T) {
		srv := newTestServer(store.NewMemoryStore())
		logSend(t, srv, "owner-1", "Hello")

		w := srv.do(t, http.MethodGet, "/api/sends", nil, srv.token(t, "owner-1"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body struct {
			Items    []handlers.SendBody `json:"items"`
			Total    int                 `json:"total"`
			PageSize int                 `json:"page_size"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

		assert.Equal(t, 1, body.Total)
		assert.Equal(t, 15, body.PageSize)
		assert.Len(t, body.Items, 1)
	})

	t.Run("page size above the maximum is rejected", func(t *testing.T) {
		srv := newTestServer(store.NewMemoryStore())

		w := srv.do(t, http.MethodGet, "/api/sends?page_size=101", nil, srv.token(t, "owner-1"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("storage failure gets 503", func(t *testing.T) {
		h := handlers.NewReportHandler(newTestService(failingRepository{}).Store(), zap.NewNop())

		_, err := h.ListSends(withCaller("owner-1", ""), &handlers.ListSendsRequest{Page: 1, PageSize: 15})

		assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, err))
	})
}

func TestReportHandler_DeleteSend(t *testing.T) {
	t.Run("owner deletes a send and its opens", func(t *testing.T) {
		repo := store.NewMemoryStore()
		srv := newTestServer(repo)
		id := logSend(t, srv, "owner-1", "Hello")
		fetchPixel(srv.router, http.MethodGet, "/track/open/"+id.String()+".gif", nil)

		w := srv.do(t, http.MethodDelete, "/api/sends/"+id.String(), nil, srv.token(t, "owner-1"))
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

		sends, opens := repo.Counts()
		assert.Zero(t, sends)
		assert.Zero(t, opens)
	})

	t.Run("another owner cannot delete", func(t *testing.T) {
		repo := store.NewMemoryStore()
		srv := newTestServer(repo)
		id := logSend(t, srv, "owner-1", "Hello")

		w := srv.do(t, http.MethodDelete, "/api/sends/"+id.String(), nil, srv.token(t, "owner-2"))
		assert.Equal(t, http.StatusNotFound, w.Code)

		sends, _ := repo.Counts()
		assert.Equal(t, 1, sends)
	})

	t.Run("malformed identifiers get 404", func(t *testing.T) {
		h := handlers.NewReportHandler(newTestService(store.NewMemoryStore()).Store(), zap.NewNop())

		_, err := h.DeleteSend(withCaller("owner-1", ""), &handlers.TrackingIDParam{TrackingID: "nope"})

		assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	})
}
