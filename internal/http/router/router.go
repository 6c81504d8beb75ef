package router

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/menta2k/image-assistant/internal/http/handlers"
)

// Setup registers every route of the web UI
func Setup(h *handlers.Handler, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger))

	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")

	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/logout", h.Logout).Methods("POST")

	r.HandleFunc("/analyze", h.Analyze).Methods("POST")
	r.HandleFunc("/history/{index:[0-9]+}", h.HistoryEntry).Methods("GET")
	r.HandleFunc("/history/{index:[0-9]+}/image", h.HistoryImage).Methods("GET")

	r.HandleFunc("/subscribe", h.Subscribe).Methods("POST")
	r.HandleFunc("/payment", h.Payment).Methods("POST")
	r.HandleFunc("/payment/cancel", h.CancelPayment).Methods("POST")
	r.HandleFunc("/subscription/cancel", h.CancelSubscription).Methods("POST")

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
