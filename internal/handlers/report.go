package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/email-tracker/internal/auth"
	"github.com/serroba/email-tracker/internal/tracking"
	"go.uber.org/zap"
)

// ReportStore reads and deletes an owner's sends. *tracking.EventStore satisfies it.
type ReportStore interface {
	GetReport(ctx context.Context, id tracking.ID, owner tracking.OwnerID) (*tracking.Report, error)
	ListForOwner(ctx context.Context, owner tracking.OwnerID, page, pageSize int) (*tracking.Page, error)
	DeleteSend(ctx context.Context, id tracking.ID, owner tracking.OwnerID) error
}

// ReportHandler serves the owner-restricted report and dashboard operations.
type ReportHandler struct {
	store  ReportStore
	logger *zap.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(store ReportStore, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{store: store, logger: logger}
}

// GetReport returns a send with its opens, oldest first.
func (h *ReportHandler) GetReport(ctx context.Context, req *TrackingIDParam) (*ReportResponse, error) {
	id, err := tracking.ParseID(req.TrackingID)
	if err != nil {
		return nil, huma.Error404NotFound("Invalid Tracking ID format.")
	}

	report, err := h.store.GetReport(ctx, id, auth.OwnerFromContext(ctx))
	if err != nil {
		return nil, h.mapError(err, id)
	}

	resp := &ReportResponse{}
	resp.Body.Send = toSendBody(report.Send)
	resp.Body.TotalOpens = report.TotalOpens()
	resp.Body.Opens = make([]OpenBody, 0, len(report.Opens))

	for _, open := range report.Opens {
		resp.Body.Opens = append(resp.Body.Opens, OpenBody{
			OpenedAt:       open.OpenedAt,
			OpenerIP:       open.OpenerIP,
			OpenerLocation: open.OpenerLocation,
			UserAgent:      open.UserAgent,
		})
	}

	return resp, nil
}

// ListSends returns one page of the caller's sends.
func (h *ReportHandler) ListSends(ctx context.Context, req *ListSendsRequest) (*ListSendsResponse, error) {
	page, err := h.store.ListForOwner(ctx, auth.OwnerFromContext(ctx), req.Page, req.PageSize)
	if err != nil {
		h.logger.Error("failed to list sends", zap.Error(err))

		return nil, huma.Error503ServiceUnavailable("Storage unavailable, retry later.")
	}

	resp := &ListSendsResponse{}
	resp.Body.Items = make([]SendBody, 0, len(page.Items))

	for _, send := range page.Items {
		resp.Body.Items = append(resp.Body.Items, toSendBody(send))
	}

	resp.Body.Total = page.Total
	resp.Body.Page = page.Page
	resp.Body.PageSize = page.PageSize
	resp.Body.Pages = page.Pages()

	return resp, nil
}

// DeleteSend removes one of the caller's sends with its opens.
func (h *ReportHandler) DeleteSend(ctx context.Context, req *TrackingIDParam) (*struct{}, error) {
	id, err := tracking.ParseID(req.TrackingID)
	if err != nil {
		return nil, huma.Error404NotFound("Invalid Tracking ID format.")
	}

	if err := h.store.DeleteSend(ctx, id, auth.OwnerFromContext(ctx)); err != nil {
		return nil, h.mapError(err, id)
	}

	return nil, nil
}

func (h *ReportHandler) mapError(err error, id tracking.ID) error {
	if errors.Is(err, tracking.ErrNotFound) {
		return huma.Error404NotFound("Tracking ID not found or not accessible.")
	}

	h.logger.Error("report storage failure", zap.String("tracking_id", id.String()), zap.Error(err))

	return huma.Error503ServiceUnavailable("Storage unavailable, retry later.")
}

func toSendBody(send tracking.SendEvent) SendBody {
	return SendBody{
		TrackingID:     send.ID.String(),
		SentAt:         send.CreatedAt,
		Subject:        send.Subject,
		RecipientEmail: send.RecipientEmail,
		SenderIP:       send.SenderIP,
		SenderLocation: send.SenderLocation,
	}
}
