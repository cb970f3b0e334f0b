package handlers

import (
	"context"
	"net/http"

	"github.com/camden-git/foodlens/services"
	"github.com/go-chi/chi/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// SessionIDContextKey holds the ID of an intake session known to exist.
	SessionIDContextKey ContextKey = "session_id"
)

// SessionMiddleware resolves the {session_id} URL parameter and answers 404
// for unknown sessions before the handler runs.
func SessionMiddleware(svc *services.IntakeService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "session_id")
			if _, err := svc.State(id); err != nil {
				writeServiceError(w, err, "load session")
				return
			}
			ctx := context.WithValue(r.Context(), SessionIDContextKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(SessionIDContextKey).(string)
	return id
}
