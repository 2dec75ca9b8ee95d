package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ceramicnetwork/go-callpush/models"
)

type commandHandler interface {
	Handle(ctx context.Context, cmd models.Command) *models.Response
}

// NewRouter serves the command API over plain HTTP for local development. The Lambda deployment receives the same
// command documents directly.
func NewRouter(logger models.Logger, handler commandHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		cmd := models.Command{}
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			logger.Warnf("server: malformed command: %v", err)
			body, _ := json.Marshal(models.ErrorBody{Error: err.Error()})
			writeResponse(w, &models.Response{StatusCode: http.StatusBadRequest, Body: string(body)})
			return
		}
		writeResponse(w, handler.Handle(r.Context(), cmd))
	})
	return r
}

func writeResponse(w http.ResponseWriter, resp *models.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write([]byte(resp.Body))
}
