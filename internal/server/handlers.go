package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/ingest"
	"github.com/dataguardian/dataguardian/internal/report"
	"github.com/dataguardian/dataguardian/internal/scan"
	"github.com/dataguardian/dataguardian/internal/store"
)

// maxUploadBytes caps the size of uploaded scan targets.
const maxUploadBytes = 64 << 20

type scanTextRequest struct {
	Text   string `json:"text"`
	Target string `json:"target"`
}

type scanPathRequest struct {
	Path string `json:"path"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// finishScan persists the report, feeds the event stream and alerting, and
// writes the response. Store and alert failures never fail the request.
func (s *Server) finishScan(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	if err := s.store.Save(r.Context(), rep); err != nil {
		s.logger.Error("Failed to persist report",
			zap.Error(err),
			zap.String("report_id", rep.ID),
		)
	}
	s.hub.PublishScanCompleted(rep)
	go s.notifier.Notify(context.Background(), rep)

	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleScanText(w http.ResponseWriter, r *http.Request) {
	var req scanTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	target := req.Target
	if target == "" {
		target = "inline"
	}

	rep := s.newScanner().Text(req.Text, target)
	s.finishScan(w, r, rep)
}

func (s *Server) handleScanUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !ingest.SupportedFile(name) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return
	}

	// Spool to disk under the original name so the reader can dispatch on
	// the extension.
	dir, err := os.MkdirTemp("", "dataguardian-upload-")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	dst.Close()

	rep := s.newScanner().File(path, name)
	s.finishScan(w, r, rep)
}

func (s *Server) handleScanPath(w http.ResponseWriter, r *http.Request) {
	var req scanPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	rep, err := s.newScanner().Path(req.Path)
	if errors.Is(err, scan.ErrTargetNotFound) {
		writeError(w, http.StatusNotFound, "target does not exist")
		return
	}
	if err != nil {
		s.logger.Error("Path scan failed", zap.Error(err), zap.String("path", req.Path))
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	s.finishScan(w, r, rep)
}

type breachCheckRequest struct {
	Values []string `json:"values"`
}

// handleBreachCheck reports how often candidate secrets appear in known
// breaches. Responses key on the masked value so raw secrets never echo back.
func (s *Server) handleBreachCheck(w http.ResponseWriter, r *http.Request) {
	var req breachCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "values is required")
		return
	}
	if len(req.Values) > 50 {
		writeError(w, http.StatusBadRequest, "at most 50 values per request")
		return
	}

	found := s.breaches.CheckValues(r.Context(), req.Values)
	keepLast := s.currentLimits().MaskKeepLast
	masked := make(map[string]int, len(found))
	for value, count := range found {
		masked[scan.Mask(value, keepLast)] = count
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checked":  len(req.Values),
		"breached": masked,
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	reports, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list reports", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rep, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("Failed to load report", zap.Error(err), zap.String("report_id", id))
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := rep.HTML()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to render report")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, html)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
