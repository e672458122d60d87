package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	u := NewUpgrader([]string{"https://studio.example.org/"})

	tests := []struct {
		name   string
		host   string
		origin string
		want   bool
	}{
		{"no origin", "selftest.local:8080", "", true},
		{"localhost", "selftest.local:8080", "http://localhost:3000", true},
		{"loopback v6", "selftest.local:8080", "http://[::1]:8080", true},
		{"same host", "selftest.local:8080", "http://selftest.local:8080", true},
		{"private ip", "selftest.local:8080", "http://192.168.1.20", true},
		{"listed origin", "selftest.local:8080", "https://studio.example.org", true},
		{"foreign origin", "selftest.local:8080", "https://evil.example.com", false},
		{"invalid origin", "selftest.local:8080", "://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, u.checkOrigin(r))
		})
	}
}
