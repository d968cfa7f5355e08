package server

import (
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/hoststat/internal/dashboard"
	"codeberg.org/mutker/hoststat/internal/stats"
)

type latestResponse struct {
	Available bool            `json:"available"`
	Stats     *stats.Snapshot `json:"stats"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLatest reports "no data yet" as available=false rather than an error.
func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	snapshot, ok := s.history.MostRecent()
	if !ok {
		s.writeJSON(w, http.StatusOK, latestResponse{})
		return
	}
	s.writeJSON(w, http.StatusOK, latestResponse{Available: true, Stats: &snapshot})
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.history.Snapshots())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dark, _ := strconv.ParseBool(r.URL.Query().Get("dark"))
	s.writeJSON(w, http.StatusOK, dashboard.Build(s.history.Snapshots(), dark))
}

// handleArchive serves archived snapshots between the unix-second "since" and
// "until" query parameters. Both are optional.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil || !s.archive.Enabled() {
		s.writeError(w, http.StatusNotFound, "archive disabled")
		return
	}

	since, err := unixParam(r, "since")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid since")
		return
	}
	until, err := unixParam(r, "until")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid until")
		return
	}

	items, err := s.archive.Range(r.Context(), since, until)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to query archive")
		s.writeError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	if items == nil {
		items = []stats.Snapshot{}
	}

	s.writeJSON(w, http.StatusOK, items)
}

func unixParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}

	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(sec, 0), nil
}
