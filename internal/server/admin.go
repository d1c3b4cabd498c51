package server

import (
	"net/http"
	"strconv"

	"github.com/TheLazyLemur/graphpilot/internal/apperr"
	"github.com/TheLazyLemur/graphpilot/internal/store"
)

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if _, err := s.localClaims(r, true); err != nil {
		writeError(w, err)
		return
	}
	if s.Feed == nil {
		writeError(w, apperr.New(apperr.KindInternal, "live feed is disabled"))
		return
	}
	s.Feed.ServeWS(w, r)
}

func (s *Server) handleRecentRequests(w http.ResponseWriter, r *http.Request) {
	if _, err := s.localClaims(r, false); err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.Store.RecentRequests(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []store.RequestLog{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
