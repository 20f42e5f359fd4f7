// Package api implements the Vitae HTTP API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vitae/internal/storage"
)

// ProfileParam is the URL parameter naming the profile.
const ProfileParam = "profile"

// ProfileName returns middleware that rejects requests whose {profile}
// parameter is not a plain .tex file name.
func ProfileName(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, ProfileParam)
		if name == "" {
			writeText(w, http.StatusBadRequest, ":profile not set")
			return
		}
		if err := storage.ValidateName(name); err != nil {
			writeText(w, http.StatusForbidden, ":profile illegal")
			return
		}
		next.ServeHTTP(w, r)
	})
}
