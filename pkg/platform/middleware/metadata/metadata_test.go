package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"sbt-registry/pkg/requestcontext"
)

func TestClientMetadata(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expectedIP string
		expectedUA string
	}{
		{
			name: "prefers first hop of X-Forwarded-For",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.1, 10.0.0.1",
				"User-Agent":      "Mozilla/5.0",
			},
			remoteAddr: "192.168.1.1:12345",
			expectedIP: "203.0.113.1",
			expectedUA: "Mozilla/5.0",
		},
		{
			name: "falls back to X-Real-IP",
			headers: map[string]string{
				"X-Real-IP":  "203.0.113.7",
				"User-Agent": "curl/7.64.1",
			},
			remoteAddr: "10.0.0.1:12345",
			expectedIP: "203.0.113.7",
			expectedUA: "curl/7.64.1",
		},
		{
			name: "falls back to RemoteAddr when no headers",
			headers: map[string]string{
				"User-Agent": "test-agent",
			},
			remoteAddr: "192.168.1.100:54321",
			expectedIP: "192.168.1.100",
			expectedUA: "test-agent",
		},
		{
			name:       "handles missing user agent",
			headers:    map[string]string{},
			remoteAddr: "10.0.0.1:8080",
			expectedIP: "10.0.0.1",
			expectedUA: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedCtx context.Context
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capturedCtx = r.Context()
				w.WriteHeader(http.StatusOK)
			})
			handler := ClientMetadata(testHandler)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr
			for key, value := range tt.headers {
				req.Header.Set(key, value)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedIP, requestcontext.ClientIP(capturedCtx), "IP address mismatch")
			assert.Equal(t, tt.expectedUA, requestcontext.UserAgent(capturedCtx), "User-Agent mismatch")
		})
	}
}

func TestClientLabel(t *testing.T) {
	t.Run("labels a browser user agent", func(t *testing.T) {
		label := ClientLabel("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		assert.Contains(t, label, "Chrome")
		assert.Contains(t, label, " on ")
	})

	t.Run("empty user agent gets the unknown label", func(t *testing.T) {
		assert.Equal(t, "Unknown Client", ClientLabel(""))
	})
}
