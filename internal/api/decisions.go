package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/luxbridge/internal/controller"
	"github.com/nerrad567/luxbridge/internal/decision"
)

// handleListDecisions returns one page of the decision log.
//
// Query parameters: limit, offset, command (up|down), since (RFC 3339).
func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	if s.decisions == nil {
		writeUnavailable(w, "decision log is disabled")
		return
	}

	filter, err := parseDecisionFilter(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	result, err := s.decisions.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing decisions failed", "error", err)
		writeInternalError(w, "failed to list decisions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func parseDecisionFilter(r *http.Request) (decision.Filter, error) {
	q := r.URL.Query()
	var filter decision.Filter

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	if v := q.Get("command"); v != "" {
		cmd, err := controller.ParseCommand(v)
		if err != nil {
			return filter, errors.New("command must be up or down")
		}
		filter.Command = cmd.String()
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("since must be an RFC 3339 timestamp")
		}
		filter.Since = t
	}

	return filter, nil
}
