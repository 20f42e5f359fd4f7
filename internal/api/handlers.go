package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vitae/internal/apperr"
	"github.com/starford/vitae/internal/buildcache"
	"github.com/starford/vitae/internal/dateutil"
	"github.com/starford/vitae/internal/locate"
	"github.com/starford/vitae/internal/profileservice"
)

// MaxProfileSize bounds PUT and POST bodies.
const MaxProfileSize = 4 << 20

// DefaultDateFormat renders deferred annotation dates when the caller gives none.
const DefaultDateFormat = "MM/YYYY"

// BuildKeyHeader carries the checksum of the cache key a PDF was built from.
const BuildKeyHeader = "X-Build-Key"

// Handler holds API route handlers.
type Handler struct {
	svc    *profileservice.Service
	events Events
}

// NewHandler creates a new Handler.
func NewHandler(svc *profileservice.Service, events Events) *Handler {
	return &Handler{svc: svc, events: events}
}

func profileName(r *http.Request) string {
	return chi.URLParam(r, ProfileParam)
}

// ListProfiles handles GET /profile.
//
//	@Summary		List profiles in the profile directory
//	@Tags			profiles
//	@Produce		json
//	@Success		200	{object}	ProfileListResponse
//	@Router			/profile [get]
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileListResponse{Profiles: items})
}

// GetProfile handles GET /profile/{profile}.
//
//	@Summary		Get the parsed view of a profile
//	@Tags			profiles
//	@Produce		json
//	@Param			profile	path		string	true	"Profile file name"
//	@Success		200		{object}	ProfileDetail
//	@Failure		403		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/profile/{profile} [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Detail(r.Context(), profileName(r))
	if err != nil {
		writeError(w, "get profile", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// GetSource handles GET /profile/{profile}/source.
//
//	@Summary		Get the raw source of a profile
//	@Tags			profiles
//	@Produce		plain
//	@Param			profile	path		string	true	"Profile file name"
//	@Success		200		{string}	string
//	@Failure		404		{object}	errResponse
//	@Router			/profile/{profile}/source [get]
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	src, err := h.svc.Source(r.Context(), profileName(r))
	if err != nil {
		writeError(w, "get source", err)
		return
	}
	w.Header().Set("Content-Type", "application/x-tex; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(src)
}

// PutProfile handles PUT /profile/{profile}.
//
//	@Summary		Replace a profile, keeping the previous version as .bak
//	@Tags			profiles
//	@Accept			plain
//	@Param			profile	path	string	true	"Profile file name"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		403	{object}	errResponse
//	@Router			/profile/{profile} [put]
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxProfileSize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid body"))
		return
	}
	if err := h.svc.Write(r.Context(), profileName(r), content); err != nil {
		writeError(w, "put profile", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetEntries handles GET /profile/{profile}/entries.
//
//	@Summary		List entry ids per collection and the known sections
//	@Tags			profiles
//	@Produce		json
//	@Param			profile	path		string	true	"Profile file name"
//	@Success		200		{object}	EntriesResponse
//	@Failure		404		{object}	errResponse
//	@Router			/profile/{profile}/entries [get]
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Model(r.Context(), profileName(r))
	if err != nil {
		writeError(w, "get entries", err)
		return
	}
	writeJSON(w, http.StatusOK, EntriesResponse{
		Collections:   m.Collections(),
		KnownSections: m.KnownSections(),
	})
}

// GetPDF handles GET /profile/{profile}/pdf.
//
//	@Summary		Compile a document body and return the PDF
//	@Tags			builds
//	@Produce		application/pdf
//	@Param			profile	path		string	true	"Profile file name"
//	@Param			latex	query		string	true	"Document body"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	errResponse
//	@Failure		422		{string}	string	"Filtered compiler log"
//	@Router			/profile/{profile}/pdf [get]
func (h *Handler) GetPDF(w http.ResponseWriter, r *http.Request) {
	name := profileName(r)
	a, err := h.svc.Compile(r.Context(), name, r.URL.Query().Get("latex"), nil)
	if err != nil {
		writeError(w, "compile", err)
		return
	}
	servePDF(w, r, name, a)
}

// PostPDF handles POST /profile/{profile}/pdf.
//
//	@Summary		Assemble a selection of entries, compile it and return the PDF
//	@Tags			builds
//	@Accept			json
//	@Produce		application/pdf
//	@Param			profile	path		string			true	"Profile file name"
//	@Param			body	body		CompileRequest	true	"Sections and entries to include"
//	@Success		200		{file}		binary
//	@Failure		400		{object}	errResponse
//	@Failure		422		{string}	string	"Filtered compiler log"
//	@Router			/profile/{profile}/pdf [post]
func (h *Handler) PostPDF(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return
	}
	name := profileName(r)
	_, a, err := h.svc.Assemble(r.Context(), name, req)
	if err != nil {
		writeError(w, "assemble", err)
		return
	}
	servePDF(w, r, name, a)
}

func servePDF(w http.ResponseWriter, r *http.Request, name string, a *buildcache.Artifact) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set(BuildKeyHeader, a.Sum)
	w.Header().Set("Content-Type", "application/pdf")
	slog.Debug("serving pdf", slog.String("profile", name), slog.String("key", a.Sum))
	http.ServeFile(w, r, a.PDF)
}

// GetSelection handles GET /profile/{profile}/selection.
//
//	@Summary		Get the last body compiled for a profile
//	@Tags			builds
//	@Produce		json
//	@Param			profile	path		string	true	"Profile file name"
//	@Success		200		{object}	SelectionResponse
//	@Failure		404		{object}	errResponse
//	@Router			/profile/{profile}/selection [get]
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.PendingSelection(r.Context(), profileName(r))
	if err != nil {
		writeError(w, "get selection", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Edit handles GET /profile/{profile}/edit.
// The response is the 1-based line of the entry declaration, or 0 when the
// target is not an entry token.
//
//	@Summary		Map a PDF coordinate or entry token to its declaration line
//	@Tags			builds
//	@Produce		plain
//	@Param			profile	path		string	true	"Profile file name"
//	@Param			latex	query		string	false	"Document body; defaults to the pending selection"
//	@Param			page	query		int		false	"PDF page (1-based)"
//	@Param			x		query		number	false	"Horizontal coordinate"
//	@Param			y		query		number	false	"Vertical coordinate"
//	@Param			target	query		string	false	"Entry token to look up instead of a coordinate"
//	@Success		200		{string}	string	"Line number"
//	@Failure		404		{object}	errResponse
//	@Failure		410		{object}	errResponse
//	@Router			/profile/{profile}/edit [get]
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	name := profileName(r)
	body := r.URL.Query().Get("latex")
	if body == "" {
		row, err := h.svc.PendingSelection(r.Context(), name)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			writeError(w, "edit", err)
			return
		}
		if row != nil {
			body = row.Body
		}
	}
	loc, err := h.svc.Locate(r.Context(), name, body, q)
	if err != nil {
		writeError(w, "edit", err)
		return
	}
	w.Header().Set("X-Entry", loc.Entry)
	writeText(w, http.StatusOK, strconv.Itoa(loc.Line))
}

func parseQuery(r *http.Request) (locate.Query, error) {
	v := r.URL.Query()
	if t := v.Get("target"); t != "" {
		return locate.Query{Target: t}, nil
	}
	page, err := strconv.Atoi(v.Get("page"))
	if err != nil || page < 1 {
		return locate.Query{}, errors.New("page or target is required")
	}
	x, err := strconv.ParseFloat(v.Get("x"), 64)
	if err != nil {
		return locate.Query{}, errors.New("invalid x")
	}
	y, err := strconv.ParseFloat(v.Get("y"), 64)
	if err != nil {
		return locate.Query{}, errors.New("invalid y")
	}
	return locate.Query{Page: page, X: x, Y: y}, nil
}

// Codes handles GET /profile/{profile}/code.
//
//	@Summary		Annotation groups of the entries in a document body
//	@Tags			profiles
//	@Produce		json
//	@Param			profile	path		string	true	"Profile file name"
//	@Param			latex	query		string	false	"Document body; defaults to the pending selection"
//	@Param			format	query		string	false	"Date format"	default(MM/YYYY)
//	@Success		200		{object}	CodesResponse
//	@Failure		400		{object}	errResponse
//	@Router			/profile/{profile}/code [get]
func (h *Handler) Codes(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = DefaultDateFormat
	}
	groups, err := h.svc.Codes(r.Context(), profileName(r), r.URL.Query().Get("latex"))
	if err != nil {
		writeError(w, "codes", err)
		return
	}
	out, err := codeGroups(groups, format)
	if errors.Is(err, dateutil.ErrInvalidFormat) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err != nil {
		writeError(w, "codes", err)
		return
	}
	writeJSON(w, http.StatusOK, CodesResponse{Groups: out})
}

// Change handles GET /profile/{profile}/change.
//
//	@Summary		Stream change events of a profile
//	@Tags			events
//	@Produce		text/event-stream
//	@Param			profile	path	string	true	"Profile file name"
//	@Param			once	query	bool	false	"End the stream after the first event"
//	@Success		200
//	@Router			/profile/{profile}/change [get]
func (h *Handler) Change(w http.ResponseWriter, r *http.Request) {
	h.events.ServeTopic(w, r, profileName(r), r.URL.Query().Has("once"))
}

// ListBuilds handles GET /builds.
//
//	@Summary		Recent build outcomes
//	@Tags			builds
//	@Produce		json
//	@Param			profile	query		string	false	"Filter by profile"
//	@Param			limit	query		int		false	"Maximum rows"
//	@Success		200		{object}	BuildListResponse
//	@Router			/builds [get]
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	builds, err := h.svc.Builds(r.Context(), q.Get("profile"), limit)
	if err != nil {
		writeError(w, "list builds", err)
		return
	}
	writeJSON(w, http.StatusOK, BuildListResponse{Builds: builds})
}
