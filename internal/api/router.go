package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vitae/internal/profileservice"
)

// Events is the change-notification surface the router mounts.
type Events interface {
	http.Handler
	ServeTopic(w http.ResponseWriter, r *http.Request, topic string, once bool)
}

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, serves GET /events and the per-profile change stream.
func NewRouter(svc *profileservice.Service, events Events) chi.Router {
	h := NewHandler(svc, events)

	r := chi.NewRouter()

	r.Get("/profile", h.ListProfiles)
	r.Route("/profile/{"+ProfileParam+"}", func(r chi.Router) {
		r.Use(ProfileName)
		r.Get("/", h.GetProfile)
		r.Put("/", h.PutProfile)
		r.Get("/source", h.GetSource)
		r.Get("/entries", h.GetEntries)
		r.Get("/pdf", h.GetPDF)
		r.Post("/pdf", h.PostPDF)
		r.Get("/selection", h.GetSelection)
		r.Get("/edit", h.Edit)
		r.Get("/code", h.Codes)
		if events != nil {
			r.Get("/change", h.Change)
		}
	})

	r.Get("/builds", h.ListBuilds)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}
