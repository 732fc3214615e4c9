package httpserver

import (
	"net/http"
	"strconv"

	"github.com/tokligence/chatrelay/internal/httpserver/protocol"
)

type usageEndpoint struct {
	server *Server
}

func newUsageEndpoint(server *Server) protocol.Endpoint {
	return &usageEndpoint{server: server}
}

func (e *usageEndpoint) Name() string { return "usage" }

func (e *usageEndpoint) Routes() []protocol.EndpointRoute {
	return []protocol.EndpointRoute{
		{Method: http.MethodGet, Path: "/usage/summary", Handler: http.HandlerFunc(e.server.handleUsageSummary)},
		{Method: http.MethodGet, Path: "/usage/recent", Handler: http.HandlerFunc(e.server.handleUsageRecent)},
	}
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ledger.Summary(r.Context())
	if err != nil {
		s.logger.Errorf("usage summary: %v", err)
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

func (s *Server) handleUsageRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			s.respondJSON(w, http.StatusBadRequest, map[string]any{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	entries, err := s.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Errorf("usage recent: %v", err)
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
