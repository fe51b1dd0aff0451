package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"dronewatch/internal/drone"
	"dronewatch/internal/upstream"
	"dronewatch/internal/violation"
	dErrors "dronewatch/pkg/domain-errors"
	"dronewatch/pkg/platform/httputil"
	"dronewatch/pkg/requestcontext"
)

// DefaultQueryWindow is how far back /nfz looks.
const DefaultQueryWindow = 24 * time.Hour

// DroneFeed supplies the live drone list.
type DroneFeed interface {
	Fetch(ctx context.Context) ([]drone.Position, error)
}

// ViolationReader answers time-windowed violation queries.
type ViolationReader interface {
	QuerySince(ctx context.Context, cutoff time.Time) ([]violation.Record, error)
}

// Handler serves the public API.
type Handler struct {
	feed        DroneFeed
	violations  ViolationReader
	queryWindow time.Duration
	logger      *slog.Logger
}

// New constructs the API handler. A non-positive window uses DefaultQueryWindow.
func New(feed DroneFeed, violations ViolationReader, queryWindow time.Duration, logger *slog.Logger) *Handler {
	if queryWindow <= 0 {
		queryWindow = DefaultQueryWindow
	}
	return &Handler{
		feed:        feed,
		violations:  violations,
		queryWindow: queryWindow,
		logger:      logger,
	}
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Success: "ok"})
}

// HandleRoot handles GET /.
func (h *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, RootResponse{Message: "Welcome to Airguardian API"})
}

// HandleDrones handles GET /drones by proxying the drone feed.
func (h *Handler) HandleDrones(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	positions, err := h.feed.Fetch(ctx)
	if err != nil {
		var uerr *upstream.Error
		if errors.As(err, &uerr) {
			h.logger.ErrorContext(ctx, "failed to fetch drone data",
				"request_id", requestID,
				"category", uerr.Category,
				"error", err,
			)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadGateway, "Failed to fetch drone data"))
			return
		}
		h.logger.ErrorContext(ctx, "unexpected error in /drones", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, DronesResponse{Drones: nonNil(positions)})
}

// HandleViolations handles GET /nfz. The secret check runs in middleware.
func (h *Handler) HandleViolations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cutoff := requestcontext.Now(ctx).Add(-h.queryWindow)

	records, err := h.violations.QuerySince(ctx, cutoff)
	if err != nil {
		h.logger.ErrorContext(ctx, "query violations failed",
			"request_id", requestcontext.RequestID(ctx),
			"cutoff", cutoff,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ViolationsResponse{Violations: nonNil(records)})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
