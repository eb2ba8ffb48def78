package httpapi

import (
	"net/http"

	"github.com/xduvd/xduvd/internal/buildinfo"
	"github.com/xduvd/xduvd/internal/domain"
	"github.com/xduvd/xduvd/internal/httpjson"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, buildinfo.Current())
}

type statusResponse struct {
	domain.RunStatistics
	DownloadedBytes int64 `json:"downloadedBytes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{}
	if s.stats != nil {
		resp.RunStatistics = s.stats()
	}
	if s.progress != nil {
		resp.DownloadedBytes = s.progress.Total()
	}
	httpjson.Write(w, http.StatusOK, resp)
}
