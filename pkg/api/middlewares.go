package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/quorumsig/multisigd/pkg/core"
)

func operation(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return r.Method + " " + pattern
		}
	}
	return r.Method + " " + r.URL.Path
}

func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger := logger.With(
				zap.String("operation", operation(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
			)
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				logger.Error("Fail")
			case ww.Status() >= http.StatusBadRequest:
				logger.Info("Fail")
			default:
				logger.Info("Success")
			}
		})
	}
}

var httpResponseTimeMetric = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "",
	Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 10},
}, []string{"operation", "status"})

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			httpResponseTimeMetric.WithLabelValues(operation(r), strconv.Itoa(ww.Status())).Observe(v)
		}))
		defer t.ObserveDuration()
		next.ServeHTTP(ww, r)
	})
}

type addressKey struct{}

// Authentication resolves a bearer token to the address it was issued for.
// Requests without a token pass through unauthenticated.
func (h *Handler) Authentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if h.auth == nil || header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorJSON{Error: "expected a bearer token", Kind: core.KindUnauthorized})
			return
		}
		addr, err := h.auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorJSON{Error: err.Error(), Kind: core.KindUnauthorized})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), addressKey{}, addr)))
	})
}

// authorize checks that the caller proved control of claimed.
func (h *Handler) authorize(r *http.Request, claimed core.Address) (core.Address, error) {
	addr, err := core.ParseAddress(claimed.String())
	if err != nil {
		return "", err
	}
	if h.auth == nil {
		return addr, nil
	}
	proven, ok := r.Context().Value(addressKey{}).(core.Address)
	if !ok {
		return "", core.Errorf(core.KindUnauthorized, "authentication required")
	}
	if proven != addr {
		return "", core.Errorf(core.KindUnauthorized, "token is bound to %s, not %s", proven, addr)
	}
	return addr, nil
}
