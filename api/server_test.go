package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/angelmondragon/homecafe-backend/pkg/config"
)

func TestNewServerAppliesTimeouts(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{ReadTimeout: 3 * time.Second, WriteTimeout: 7 * time.Second}}
	srv := NewServer(cfg, ":8080", http.NotFoundHandler())
	if srv.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", srv.Addr)
	}
	if srv.ReadTimeout != 3*time.Second || srv.WriteTimeout != 7*time.Second {
		t.Fatalf("timeouts not applied: read=%v write=%v", srv.ReadTimeout, srv.WriteTimeout)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Fatal("expected read header timeout")
	}
}
