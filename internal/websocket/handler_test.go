package websocket

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func originRequest(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"exact match", []string{"https://app.ridelink.app"}, "https://app.ridelink.app", true},
		{"wildcard allows anything", []string{"*"}, "https://evil.example.net", true},
		{"subdomain pattern", []string{"*.ridelink.app"}, "https://staging.ridelink.app", true},
		{"unlisted origin rejected", []string{"https://app.ridelink.app"}, "https://evil.example.net", false},
		{"no configured origins rejects browsers", nil, "https://app.ridelink.app", false},
		{"missing origin header accepted", []string{"https://app.ridelink.app"}, "", true},
		{"missing origin header accepted with no config", nil, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			check := originChecker(tc.allowed)
			if got := check(originRequest(tc.origin)); got != tc.want {
				t.Errorf("originChecker(%v) for origin %q = %v, want %v", tc.allowed, tc.origin, got, tc.want)
			}
		})
	}
}

func TestHandlerUpgraderIsPerHandler(t *testing.T) {
	strict := NewHandler(newTestHub(), nil, nil, nil, []string{"https://app.ridelink.app"})
	open := NewHandler(newTestHub(), nil, nil, nil, []string{"*"})

	req := originRequest("https://evil.example.net")

	// Concurrent checks on both handlers must not interfere with each other.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if strict.upgrader.CheckOrigin(req) {
				t.Error("strict handler accepted an unlisted origin")
			}
			if !open.upgrader.CheckOrigin(req) {
				t.Error("open handler rejected an origin despite the wildcard")
			}
		}()
	}
	wg.Wait()
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		pattern string
		origin  string
		want    bool
	}{
		{"*", "https://anything.example.net", true},
		{"https://app.ridelink.app", "https://app.ridelink.app", true},
		{"https://app.ridelink.app", "https://other.ridelink.app", false},
		{"*.ridelink.app", "https://staging.ridelink.app", true},
		{"*.ridelink.app", "https://evil.example.net", false},
	}
	for _, tc := range tests {
		if got := matchOrigin(tc.pattern, tc.origin); got != tc.want {
			t.Errorf("matchOrigin(%q, %q) = %v, want %v", tc.pattern, tc.origin, got, tc.want)
		}
	}
}
