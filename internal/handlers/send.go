package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/email-tracker/internal/auth"
	"github.com/serroba/email-tracker/internal/mailer"
	"github.com/serroba/email-tracker/internal/middleware"
	"github.com/serroba/email-tracker/internal/tracking"
	"go.uber.org/zap"
)

const htmlPixelTemplate = `<img src="%s" width="1" height="1" alt="" border="0" ` +
	`style="border:0; height:1px; width:1px; padding:0; margin:0; display:block;" loading="eager">`

// SendLogger logs send events. *tracking.Service satisfies it.
type SendLogger interface {
	LogSend(ctx context.Context, req tracking.SendRequest) (tracking.ID, error)
}

// Mailer delivers composed mail. *mailer.SMTPMailer satisfies it.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, msg mailer.Message) error
}

// URLBuilder renders the public URLs of a tracked message.
type URLBuilder struct {
	publicURL string
}

// NewURLBuilder creates a builder for URLs under publicURL.
func NewURLBuilder(publicURL string) URLBuilder {
	return URLBuilder{publicURL: strings.TrimRight(publicURL, "/")}
}

// PixelURL returns the pixel URL of id.
func (b URLBuilder) PixelURL(id tracking.ID) string {
	return fmt.Sprintf("%s/track/open/%s.gif", b.publicURL, id)
}

// ReportURL returns the report URL of id.
func (b URLBuilder) ReportURL(id tracking.ID) string {
	return fmt.Sprintf("%s/api/reports/%s", b.publicURL, id)
}

// HTMLPixel returns the image tag embedding the pixel of id.
func (b URLBuilder) HTMLPixel(id tracking.ID) string {
	return fmt.Sprintf(htmlPixelTemplate, b.PixelURL(id))
}

func (b URLBuilder) tracked(id tracking.ID, message string) TrackedMessageBody {
	return TrackedMessageBody{
		Message:    message,
		TrackingID: id.String(),
		PixelURL:   b.PixelURL(id),
		HTMLPixel:  b.HTMLPixel(id),
		ReportURL:  b.ReportURL(id),
	}
}

// SendHandler logs sends through the API and composes tracked mail.
type SendHandler struct {
	sends  SendLogger
	mailer Mailer
	urls   URLBuilder
	logger *zap.Logger
}

// NewSendHandler creates a new send handler.
func NewSendHandler(sends SendLogger, m Mailer, urls URLBuilder, logger *zap.Logger) *SendHandler {
	return &SendHandler{
		sends:  sends,
		mailer: m,
		urls:   urls,
		logger: logger,
	}
}

// LogSend records a send and returns the pixel references to embed.
func (h *SendHandler) LogSend(ctx context.Context, req *LogSendRequest) (*LogSendResponse, error) {
	send := tracking.SendRequest{
		SenderIP: clientIP(ctx),
		Owner:    auth.OwnerFromContext(ctx),
	}

	if req.Body != nil {
		send.Subject = req.Body.Subject
		send.RecipientEmail = req.Body.RecipientEmail
	}

	id, err := h.sends.LogSend(ctx, send)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to log email send event.")
	}

	return &LogSendResponse{Body: h.urls.tracked(id, "Email send event logged successfully.")}, nil
}

// Compose logs a send for the caller, appends the pixel to the body and mails it.
// A delivery failure leaves the send logged.
func (h *SendHandler) Compose(ctx context.Context, req *ComposeRequest) (*ComposeResponse, error) {
	if !h.mailer.Enabled() {
		return nil, huma.Error503ServiceUnavailable("Mail delivery is not configured.")
	}

	id, err := h.sends.LogSend(ctx, tracking.SendRequest{
		Subject:        req.Body.Subject,
		RecipientEmail: req.Body.Recipient,
		SenderIP:       clientIP(ctx),
		Owner:          auth.OwnerFromContext(ctx),
	})
	if err != nil {
		return nil, huma.Error500InternalServerError("Error logging email send event. Email not sent.")
	}

	err = h.mailer.Send(ctx, mailer.Message{
		To:       req.Body.Recipient,
		Subject:  req.Body.Subject,
		HTMLBody: req.Body.BodyHTML + "\n" + h.urls.HTMLPixel(id),
	})
	if err != nil {
		h.logger.Error("failed to deliver composed mail",
			zap.String("tracking_id", id.String()),
			zap.Error(err),
		)

		if errors.Is(err, mailer.ErrNotConfigured) {
			return nil, huma.Error503ServiceUnavailable("Mail delivery is not configured.")
		}

		return nil, huma.Error502BadGateway("Error sending email.")
	}

	return &ComposeResponse{Body: h.urls.tracked(id, "Tracked email sent to "+req.Body.Recipient+".")}, nil
}

func clientIP(ctx context.Context) string {
	meta, _ := middleware.RequestMetaFromContext(ctx)

	return meta.ClientIP
}
