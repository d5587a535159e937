package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/dataguardian/dataguardian/internal/config"
	"github.com/dataguardian/dataguardian/internal/logger"
	"github.com/dataguardian/dataguardian/internal/report"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = false

	s, err := New(cfg, log, "test")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	go s.hub.Run()
	return s
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestScanTextEndpoint(t *testing.T) {
	s := testServer(t)

	t.Run("DetectsAndPersists", func(t *testing.T) {
		rec := postJSON(t, s.router, "/scan/text", scanTextRequest{
			Text:   "contact: someone@example.com, CPF 529.982.247-25",
			Target: "ticket-812",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var rep report.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}
		if rep.Target != "ticket-812" {
			t.Errorf("expected target ticket-812, got %q", rep.Target)
		}
		if rep.Summary.CountsByType["EMAIL"] < 1 || rep.Summary.CountsByType["CPF"] < 1 {
			t.Errorf("expected EMAIL and CPF matches, got %v", rep.Summary.CountsByType)
		}

		// The report must be retrievable afterwards.
		req := httptest.NewRequest(http.MethodGet, "/reports/"+rep.ID, nil)
		rec2 := httptest.NewRecorder()
		s.router.ServeHTTP(rec2, req)
		if rec2.Code != http.StatusOK {
			t.Errorf("expected stored report, got %d", rec2.Code)
		}
	})

	t.Run("EmptyTextRejected", func(t *testing.T) {
		rec := postJSON(t, s.router, "/scan/text", scanTextRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("MalformedBodyRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/scan/text", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestScanPathEndpoint(t *testing.T) {
	s := testServer(t)

	t.Run("MissingTargetIs404", func(t *testing.T) {
		rec := postJSON(t, s.router, "/scan/path", scanPathRequest{Path: "/no/such/place"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("ScansDirectory", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir+"/users.csv", "email\nalice@example.com\n")

		rec := postJSON(t, s.router, "/scan/path", scanPathRequest{Path: dir})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var rep report.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}
		if rep.Summary.CountsByType["EMAIL"] < 1 {
			t.Errorf("expected EMAIL match, got %v", rep.Summary.CountsByType)
		}
	})
}

func TestScanUploadEndpoint(t *testing.T) {
	s := testServer(t)

	upload := func(t *testing.T, filename, content string) *httptest.ResponseRecorder {
		t.Helper()
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
		mw.Close()

		req := httptest.NewRequest(http.MethodPost, "/scan/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("ScansUploadedCSV", func(t *testing.T) {
		rec := upload(t, "export.csv", "email\nbob@example.com\n")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var rep report.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}
		if rep.Target != "export.csv" {
			t.Errorf("expected target export.csv, got %q", rep.Target)
		}
		if rep.Summary.CountsByType["EMAIL"] < 1 {
			t.Errorf("expected EMAIL match, got %v", rep.Summary.CountsByType)
		}
	})

	t.Run("RejectsUnsupportedType", func(t *testing.T) {
		rec := upload(t, "binary.exe", "MZ")
		if rec.Code != http.StatusUnsupportedMediaType {
			t.Errorf("expected 415, got %d", rec.Code)
		}
	})

	t.Run("MissingFileField", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/scan/upload", strings.NewReader("nope"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestReportsEndpoint(t *testing.T) {
	s := testServer(t)

	postJSON(t, s.router, "/scan/text", scanTextRequest{Text: "card 4111 1111 1111 1111"})

	t.Run("List", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports", nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body struct {
			Reports []report.Report `json:"reports"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if len(body.Reports) != 1 {
			t.Errorf("expected 1 report, got %d", len(body.Reports))
		}
	})

	t.Run("UnknownReportIs404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/reports/missing-id", nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("HTMLFormat", func(t *testing.T) {
		rec := postJSON(t, s.router, "/scan/text", scanTextRequest{Text: "a@b.com"})
		var rep report.Report
		if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
			t.Fatalf("failed to decode report: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/reports/"+rep.ID+"?format=html", nil)
		rec2 := httptest.NewRecorder()
		s.router.ServeHTTP(rec2, req)
		if rec2.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec2.Code)
		}
		if ct := rec2.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("expected HTML content type, got %q", ct)
		}
	})
}

func TestHealthAndInfo(t *testing.T) {
	s := testServer(t)

	for _, path := range []string{"/health", "/info"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestBreachCheckEndpoint(t *testing.T) {
	// Range responses use the suffix of SHA1("password123").
	hibp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("C6008F9CAB4083784CBD1874F76618D2A97:42\r\n"))
	}))
	defer hibp.Close()

	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	cfg := config.GetDefaults()
	cfg.Server.RateLimit.Enabled = false
	cfg.Breach.Enabled = true
	cfg.Breach.RangeURL = hibp.URL + "/range/"

	s, err := New(cfg, log, "test")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	t.Run("MasksBreachedValues", func(t *testing.T) {
		rec := postJSON(t, s.router, "/breach/check", breachCheckRequest{Values: []string{"password123"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Checked  int            `json:"checked"`
			Breached map[string]int `json:"breached"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if body.Checked != 1 {
			t.Errorf("expected 1 checked, got %d", body.Checked)
		}
		if count := body.Breached["*******d123"]; count != 42 {
			t.Errorf("expected masked key with count 42, got %v", body.Breached)
		}
		for key := range body.Breached {
			if strings.Contains(key, "password123") {
				t.Errorf("raw value leaked in response key %q", key)
			}
		}
	})

	t.Run("EmptyValuesRejected", func(t *testing.T) {
		rec := postJSON(t, s.router, "/breach/check", breachCheckRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	cfg := config.GetDefaults()
	cfg.Server.RateLimit.RequestsPerSecond = 1
	cfg.Server.RateLimit.Burst = 1

	s, err := New(cfg, log, "test")
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	limited := false
	for i := 0; i < 5; i++ {
		rec := postJSON(t, s.router, "/scan/text", scanTextRequest{Text: "x"})
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected rate limiting to reject a burst of requests")
	}
}

func TestReload(t *testing.T) {
	s := testServer(t)

	cfg := config.GetDefaults()
	cfg.Scan.MaxRows = 7
	s.Reload(cfg)

	if got := s.currentLimits().MaxRows; got != 7 {
		t.Errorf("expected MaxRows 7 after reload, got %d", got)
	}
}
