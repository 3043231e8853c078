package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lattice-home/lattice-agent/internal/state"
)

// handleGetState returns the full state document, grouped by package.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.states.GetStateValuesAsMap())
}

// handleGetProperty returns one property's current value and timestamp.
func (s *Server) handleGetProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "property")
	val, err := s.states.GetPropertyValue(name)
	if err != nil {
		writeNotFound(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"property":  name,
		"value":     val.Value,
		"timestamp": val.Timestamp.Format(time.RFC3339Nano),
	})
}

// handlePatchState applies a batch of property writes from a flat JSON
// object of fully-qualified names to new values.
//
// Updates are independent: valid properties commit even when others in the
// batch fail, and the response names every failure while listing what was
// applied.
func (s *Server) handlePatchState(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeBadRequest(w, "request body must be a JSON object of property values")
		return
	}
	if len(values) == 0 {
		writeBadRequest(w, "no properties given")
		return
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	err := s.states.UpdateProperties(values, time.Now().UTC())
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]any{"updated": names})
		return
	}

	// Partial failure: report which writes stuck.
	applied := make([]string, 0, len(names))
	for _, name := range names {
		if current, gerr := s.states.GetPropertyValue(name); gerr == nil {
			if valuesEqual(current.Value, values[name]) {
				applied = append(applied, name)
			}
		}
	}

	status := http.StatusBadRequest
	code := ErrCodeValidation
	if errors.Is(err, state.ErrUnknownProperty) && len(applied) == 0 {
		status = http.StatusNotFound
		code = ErrCodeNotFound
	}
	writeJSON(w, status, map[string]any{
		"error":   Error{Status: status, Code: code, Message: err.Error()},
		"updated": applied,
	})
}

// valuesEqual compares decoded JSON values structurally.
func valuesEqual(a, b any) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
