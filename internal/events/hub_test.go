package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/report"
	"github.com/dataguardian/dataguardian/internal/risk"
)

func dialHub(t *testing.T, hub *Hub, origin string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub(t *testing.T) {
	t.Run("ScanCompletedBroadcast", func(t *testing.T) {
		hub := NewHub([]string{"*"}, zap.NewNop())
		go hub.Run()

		conn := dialHub(t, hub, "")

		// Wait for registration before publishing.
		deadline := time.Now().Add(2 * time.Second)
		for hub.ClientCount() == 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if hub.ClientCount() != 1 {
			t.Fatal("client never registered")
		}

		hub.PublishScanCompleted(report.New("dump.sql", risk.Summary{
			Score:        30,
			Level:        risk.LevelHigh,
			CountsByType: map[string]int{"EMAIL": 3},
		}, nil, nil))

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var event Event
		if err := conn.ReadJSON(&event); err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		if event.Type != EventTypeScanCompleted {
			t.Errorf("expected scan_completed, got %s", event.Type)
		}
		data, ok := event.Data.(map[string]any)
		if !ok {
			t.Fatalf("unexpected data shape %T", event.Data)
		}
		if data["target"] != "dump.sql" {
			t.Errorf("expected target dump.sql, got %v", data["target"])
		}
		if data["level"] != "HIGH" {
			t.Errorf("expected level HIGH, got %v", data["level"])
		}
	})

	t.Run("RejectsDisallowedOrigin", func(t *testing.T) {
		hub := NewHub([]string{"https://ok.example.com"}, zap.NewNop())
		go hub.Run()

		server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
		defer server.Close()

		url := "ws" + strings.TrimPrefix(server.URL, "http")
		header := http.Header{}
		header.Set("Origin", "https://evil.example.com")
		if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
			t.Error("expected handshake failure for disallowed origin")
		}
	})

	t.Run("AllowsListedOrigin", func(t *testing.T) {
		hub := NewHub([]string{"https://ok.example.com"}, zap.NewNop())
		go hub.Run()

		conn := dialHub(t, hub, "https://ok.example.com")
		_ = conn
	})
}
