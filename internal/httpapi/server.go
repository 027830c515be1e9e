package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thinkchat/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Send(cmd types.Command) (string, error)
	Status() types.StatusResponse
	Ready() bool
}

// NewMux wires the command, event, and probe endpoints. events serves the
// /events stream; pass the hub that also receives the worker's events.
func NewMux(svc Service, events http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if len(corsAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Log-Level", "Last-Event-ID"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/commands", commandsHandler(svc))
	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(svc.Status()); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// commandsHandler queues a worker command.
//
// @Summary      Send a command to the worker
// @Description  Queues load, generate, interrupt, reset, or check. Results arrive on /events.
// @Tags         worker
// @Accept       json
// @Produce      json
// @Param        command  body      types.Command  true  "Command"
// @Success      202      {object}  types.CommandResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /commands [post]
func commandsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var cmd types.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if cmd.Type == types.CommandGenerate {
			req := types.GenerationRequest{ID: cmd.ID, Turns: cmd.Turns}
			if err := req.Validate(); err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
		}

		start := time.Now()
		id, err := svc.Send(cmd)
		if err != nil {
			status := statusFor(err)
			if ev := requestEvent(r, LevelError); ev != nil {
				ev.Int("status", status).Str("type", string(cmd.Type)).Err(err).Msg("command rejected")
			}
			writeJSONError(w, status, err.Error())
			return
		}
		if ev := requestEvent(r, LevelInfo); ev != nil {
			ev.Str("type", string(cmd.Type)).Str("id", id).Int("turns", len(cmd.Turns)).Dur("dur", time.Since(start)).Msg("command queued")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.CommandResponse{ID: id, Type: cmd.Type})
	}
}
