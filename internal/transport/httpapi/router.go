// Package httpapi is the thin HTTP surface of the lifecycle core: health,
// metrics, timeline reads, the AI verification callback and the realtime
// socket. It translates requests and delegates everything else.
package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civicfix/internal/bootstrap/logging"
	"civicfix/internal/domain/timeline"
	"civicfix/internal/ports"
	"civicfix/internal/usecase/lifecycle"
)

// Lifecycle is the part of the orchestrator the HTTP surface calls.
type Lifecycle interface {
	ListTimeline(ctx context.Context, issueID uint64) ([]timeline.Event, error)
	ApplyVerificationCallback(ctx context.Context, input lifecycle.CallbackInput) (lifecycle.TransitionResult, error)
}

type Deps struct {
	Lifecycle Lifecycle
	Health    ports.HealthReporter
	Gatherer  prometheus.Gatherer
	// Realtime serves the websocket endpoint; nil leaves /ws unmounted.
	Realtime http.Handler
	// CallbackAPIKey must match the X-API-Key of callbacks. Empty refuses
	// every callback.
	CallbackAPIKey string
}

type Handler struct {
	lifecycle      Lifecycle
	health         ports.HealthReporter
	callbackAPIKey string
}

// NewRouter mounts every endpoint on a chi router.
func NewRouter(ctx context.Context, deps Deps) http.Handler {
	h := &Handler{
		lifecycle:      deps.Lifecycle,
		health:         deps.Health,
		callbackAPIKey: deps.CallbackAPIKey,
	}

	if deps.CallbackAPIKey == "" {
		logging.Warn(ctx, "verification callbacks disabled: no api key configured")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(ctx))

	r.Get("/health", h.handleHealth)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.Realtime != nil {
		r.Method(http.MethodGet, "/ws", deps.Realtime)
	}

	r.Route("/api/v1/issues/{issueID}", func(r chi.Router) {
		r.Get("/timeline", h.handleTimeline)
		r.Post("/verification", h.handleVerificationCallback)
	})
	return r
}

// requestLogger carries the process logger into each request context and
// logs one line per request.
func requestLogger(base context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ctx := logging.WithLogger(r.Context(), logging.Logger(base))
			ctx = logging.WithAttrs(ctx, logging.Attrs(base)...)
			ctx = logging.WithRequest(ctx, middleware.GetReqID(r.Context()), 0)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			logging.Debug(ctx, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(started)),
			)
		})
	}
}

func (h *Handler) authorizedCallback(r *http.Request) bool {
	got := r.Header.Get("X-API-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackAPIKey)) == 1
}
