package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lattice-home/lattice-agent/internal/command"
)

// defaultHistoryLimit bounds the history endpoint when no limit is given.
const defaultHistoryLimit = 50

// handleListCommands returns the live command instances, optionally filtered
// by lifecycle state via the ?state= query parameter.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	stateFilter := r.URL.Query().Get("state")

	instances := s.commands.Commands()
	out := make([]map[string]any, 0, len(instances))
	for _, inst := range instances {
		if stateFilter != "" && string(inst.State()) != stateFilter {
			continue
		}
		out = append(out, inst.ToMap())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"commands": out,
		"count":    len(out),
	})
}

// handleCreateCommand validates and enqueues a command from the request body.
//
// The body is the same JSON payload the MQTT inbox accepts: a fully
// qualified name plus optional parameters. Commands created here default to
// the local origin rather than cloud.
func (s *Server) handleCreateCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body: "+err.Error())
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeBadRequest(w, "request body must be a JSON object")
		return
	}
	if _, ok := payload["origin"]; !ok {
		payload["origin"] = string(command.OriginLocal)
	}

	inst, err := s.commands.NewCommand(payload)
	if err != nil {
		if errors.Is(err, command.ErrNotFound) {
			writeNotFound(w, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, inst.ToMap())
}

// handleGetCommand returns one live instance by id.
func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inst, ok := s.commands.FindCommand(id)
	if !ok {
		writeNotFound(w, "command not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, inst.ToMap())
}

// handleCancelCommand requests cancellation of a live instance.
//
// Cancelling an already-terminal instance is a conflict; terminal states
// are sticky.
func (s *Server) handleCancelCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inst, ok := s.commands.FindCommand(id)
	if !ok {
		writeNotFound(w, "command not found: "+id)
		return
	}

	if err := inst.Cancel(); err != nil {
		writeConflict(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, inst.ToMap())
}

// handleRetireCommand removes a terminal instance from the live set.
func (s *Server) handleRetireCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.commands.RemoveCommand(id); err != nil {
		switch {
		case errors.Is(err, command.ErrNotFound):
			writeNotFound(w, err.Error())
		case errors.Is(err, command.ErrInvalidState):
			writeConflict(w, err.Error())
		default:
			writeInternalError(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

// handleCommandHistory returns the persisted lifecycle transitions of a
// command, newest first.
func (s *Server) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "command history not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("reading command history", "id", id, "error", err)
		writeInternalError(w, "reading command history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"command_id": id,
		"entries":    entries,
		"count":      len(entries),
	})
}

// handleGetDefinitions returns the command dictionary. By default the full
// schema documents are included; ?full=false reduces each command to its
// summary form.
func (s *Server) handleGetDefinitions(w http.ResponseWriter, r *http.Request) {
	full := true
	if raw := r.URL.Query().Get("full"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeBadRequest(w, "full must be a boolean")
			return
		}
		full = parsed
	}

	writeJSON(w, http.StatusOK, s.commands.Dictionary().CommandsAsMap(full))
}
