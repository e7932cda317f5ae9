package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/apiextractor/internal/cli/ui"
	"github.com/conduit-lang/apiextractor/internal/report"
)

// Store holds the metamodel being served. Rebuilds swap it as a whole.
type Store struct {
	current atomic.Pointer[report.Metamodel]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Set replaces the served metamodel.
func (s *Store) Set(m *report.Metamodel) {
	s.current.Store(m)
}

// Get returns the served metamodel, or nil before the first build.
func (s *Store) Get() *report.Metamodel {
	return s.current.Load()
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ClassSummary is one entry of the class listing.
type ClassSummary struct {
	QualifiedName string `json:"qualified_name"`
	EntryKind     string `json:"entry_kind"`
	Functions     int    `json:"functions"`
	Enums         int    `json:"enums"`
}

type handlers struct {
	store *Store
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok", "ready": false}
	if m := h.store.Get(); m != nil {
		body["ready"] = true
		body["run_id"] = m.RunID
	}
	writeJSON(w, http.StatusOK, body)
}

// ready answers 503 and returns nil until a metamodel has been built.
func (h *handlers) ready(w http.ResponseWriter) *report.Metamodel {
	m := h.store.Get()
	if m == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "no metamodel has been built yet", nil)
	}
	return m
}

func (h *handlers) metamodel(w http.ResponseWriter, r *http.Request) {
	if m := h.ready(w); m != nil {
		writeJSON(w, http.StatusOK, m)
	}
}

func (h *handlers) classes(w http.ResponseWriter, r *http.Request) {
	m := h.ready(w)
	if m == nil {
		return
	}
	q := strings.ToLower(r.URL.Query().Get("q"))
	out := make([]ClassSummary, 0, len(m.Classes))
	for _, c := range allClasses(m) {
		if q != "" && !strings.Contains(strings.ToLower(c.QualifiedName), q) {
			continue
		}
		out = append(out, ClassSummary{
			QualifiedName: c.QualifiedName,
			EntryKind:     c.EntryKind,
			Functions:     len(c.Functions),
			Enums:         len(c.Enums),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) class(w http.ResponseWriter, r *http.Request) {
	m := h.ready(w)
	if m == nil {
		return
	}
	name := chi.URLParam(r, "name")
	var names []string
	for _, c := range allClasses(m) {
		if c.QualifiedName == name {
			writeJSON(w, http.StatusOK, c)
			return
		}
		names = append(names, c.QualifiedName)
	}
	writeError(w, http.StatusNotFound, "not_found", "no class "+name+" in the metamodel",
		ui.FindSimilar(name, names, nil))
}

func (h *handlers) rejections(w http.ResponseWriter, r *http.Request) {
	m := h.ready(w)
	if m == nil {
		return
	}
	reason := r.URL.Query().Get("reason")
	kind := r.URL.Query().Get("kind")
	out := make([]report.RejectionReport, 0, len(m.Rejections))
	for _, rej := range m.Rejections {
		if reason != "" && !strings.EqualFold(rej.Reason, reason) && !strings.EqualFold(rej.Code, reason) {
			continue
		}
		if kind != "" && !strings.EqualFold(rej.Kind, kind) {
			continue
		}
		out = append(out, rej)
	}
	writeJSON(w, http.StatusOK, out)
}

func allClasses(m *report.Metamodel) []*report.ClassReport {
	out := make([]*report.ClassReport, 0, len(m.Classes)+len(m.Templates)+len(m.SmartPointers))
	for _, list := range [][]report.ClassReport{m.Classes, m.Templates, m.SmartPointers} {
		for i := range list {
			out = append(out, &list[i])
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string, suggestions []string) {
	writeJSON(w, status, &ErrorResponse{Error: code, Message: message, Suggestions: suggestions})
}
