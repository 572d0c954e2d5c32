package handlers

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/serroba/email-tracker/internal/middleware"
	"github.com/serroba/email-tracker/internal/tracking"
	"go.uber.org/zap"
)

// PixelFile is the asset name of the tracking pixel.
const PixelFile = "pixel.gif"

// DefaultRecordTimeout bounds a detached open recording.
const DefaultRecordTimeout = 5 * time.Second

//go:embed assets/pixel.gif
var embeddedAssets embed.FS

// Assets returns the embedded static assets, rooted at the asset directory.
func Assets() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		panic(err)
	}

	return sub
}

// OpenRecorder records one pixel fetch. *tracking.Service satisfies it.
type OpenRecorder interface {
	RecordOpen(ctx context.Context, id tracking.ID, req tracking.OpenRequest) error
}

// PixelHandler serves the tracking pixel and records opens. It always answers
// with the pixel: malformed identifiers, unknown sends and storage failures are
// only logged.
type PixelHandler struct {
	recorder OpenRecorder
	assets   fs.FS
	timeout  time.Duration
	logger   *zap.Logger
}

// NewPixelHandler creates a pixel handler reading PixelFile from assets.
func NewPixelHandler(recorder OpenRecorder, assets fs.FS, timeout time.Duration, logger *zap.Logger) *PixelHandler {
	if timeout <= 0 {
		timeout = DefaultRecordTimeout
	}

	return &PixelHandler{
		recorder: recorder,
		assets:   assets,
		timeout:  timeout,
		logger:   logger,
	}
}

// ServeHTTP handles GET and HEAD /track/open/{file}.
func (h *PixelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")

	raw, ok := strings.CutSuffix(file, ".gif")
	if !ok {
		h.logger.Warn("tracking pixel requested without .gif suffix", zap.String("file", file))
		h.servePixel(w, r)

		return
	}

	id, err := tracking.ParseID(raw)
	if err != nil {
		h.logger.Warn("malformed tracking id", zap.String("tracking_id", raw), zap.Error(err))
	} else {
		h.record(r, id)
	}

	h.servePixel(w, r)
}

// record persists the open on a context detached from client cancellation.
func (h *PixelHandler) record(r *http.Request, id tracking.ID) {
	meta, ok := middleware.RequestMetaFromContext(r.Context())
	if !ok {
		meta = middleware.RequestMeta{
			ClientIP:  middleware.ClientIP(r),
			UserAgent: r.Header.Get("User-Agent"),
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic while recording open",
				zap.String("tracking_id", id.String()),
				zap.String("client_ip", meta.ClientIP),
				zap.Error(fmt.Errorf("%v", rec)),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	// The service logs not-found and storage failures itself.
	_ = h.recorder.RecordOpen(ctx, id, tracking.OpenRequest{
		OpenerIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	})
}

func (h *PixelHandler) servePixel(w http.ResponseWriter, r *http.Request) {
	header := w.Header()
	header.Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "0")

	pixel, err := fs.ReadFile(h.assets, PixelFile)
	if err != nil {
		h.logger.Error("tracking pixel asset unavailable", zap.String("file", PixelFile), zap.Error(err))
		w.WriteHeader(http.StatusNoContent)

		return
	}

	header.Set("Content-Type", "image/gif")
	header.Set("Content-Length", strconv.Itoa(len(pixel)))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	if _, err := w.Write(pixel); err != nil {
		h.logger.Debug("failed to write pixel", zap.Error(err))
	}
}
