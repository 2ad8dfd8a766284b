package server

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// handleFile serves a finished anonymous download. The token is the job's
// UUID; knowing it is what grants access.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	rel := r.PathValue("path")

	if strings.Contains(rel, "..") || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, "\\") {
		s.fileStatus(w, http.StatusBadRequest, "Invalid filename")
		return
	}
	if _, err := uuid.Parse(token); err != nil || strings.ContainsAny(token, `/\`) {
		s.fileStatus(w, http.StatusBadRequest, "Invalid download token")
		return
	}

	full := filepath.Join(s.downloadRoot, token, filepath.FromSlash(rel))
	f, err := os.Open(full)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("files.open.fail", "path", full, "error", err)
		}
		s.fileStatus(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.fileStatus(w, http.StatusNotFound, "File not found")
		return
	}

	name := filepath.Base(full)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	s.metrics.FileServed(http.StatusOK)
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) fileStatus(w http.ResponseWriter, code int, msg string) {
	s.metrics.FileServed(code)
	http.Error(w, msg, code)
}
