package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"linecook.ai/internal/game"
	"linecook.ai/internal/sim"
	"linecook.ai/internal/transport/ws"
)

func newTestKitchen(t *testing.T) *sim.Kitchen {
	t.Helper()
	l, err := game.ParseMap(strings.NewReader("#$CRU#\n#b...#\n######\n"))
	if err != nil {
		t.Fatalf("ParseMap: %v", err)
	}
	k, err := sim.NewKitchen(sim.KitchenConfig{Layout: l, MatchTicks: 10})
	if err != nil {
		t.Fatalf("NewKitchen: %v", err)
	}
	return k
}

func TestMux_HealthAndMetrics(t *testing.T) {
	k := newTestKitchen(t)
	k.AddOrder([]string{"SAUCE"}, 30, 5, 100)
	k.Advance()
	logger := log.New(io.Discard, "", 0)
	mux := newMux(k, ws.NewServer(k, ws.ServerConfig{Logger: logger}), "test.txt", logger)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`linecook_kitchen_tick{map="test.txt"} 1`,
		`linecook_kitchen_money{map="test.txt"} 150`,
		`linecook_kitchen_sessions{map="test.txt"} 0`,
		`linecook_kitchen_orders{map="test.txt",state="open"} 1`,
		`linecook_kitchen_over{map="test.txt"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestMux_AdminStateIsLoopbackOnly(t *testing.T) {
	t.Setenv("LINECOOK_ENABLE_ADMIN_HTTP", "true")
	k := newTestKitchen(t)
	logger := log.New(io.Discard, "", 0)
	mux := newMux(k, ws.NewServer(k, ws.ServerConfig{Logger: logger}), "test.txt", logger)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "10.0.0.5:4444"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote admin: code=%d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:4444"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("loopback admin: code=%d", rr.Code)
	}
	var resp struct {
		Map      string `json:"map"`
		Sessions int    `json:"sessions"`
		Obs      struct {
			Money int `json:"money"`
		} `json:"obs"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Map != "test.txt" || resp.Obs.Money != 150 {
		t.Fatalf("state=%+v", resp)
	}
}

func TestMux_AdminDisabledInProduction(t *testing.T) {
	t.Setenv("LINECOOK_ENABLE_ADMIN_HTTP", "")
	t.Setenv("DEPLOY_ENV", "production")
	k := newTestKitchen(t)
	logger := log.New(io.Discard, "", 0)
	mux := newMux(k, ws.NewServer(k, ws.ServerConfig{Logger: logger}), "test.txt", logger)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:4444"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("admin in production: code=%d", rr.Code)
	}
}
