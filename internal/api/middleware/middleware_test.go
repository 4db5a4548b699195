package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates UUID when no request ID provided", func(t *testing.T) {
		var seen string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rates/latest", nil))

		_, err := uuid.Parse(seen)
		assert.NoError(t, err, "expected a UUID, got %q", seen)
		assert.Equal(t, seen, w.Header().Get(headerRequestID))
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		var seen string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/rates/latest", nil)
		req.Header.Set(headerRequestID, "test-request-id-123")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "test-request-id-123", seen)
		assert.Equal(t, "test-request-id-123", w.Header().Get(headerRequestID))
	})
}

func TestRequestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusBadRequest, zapcore.InfoLevel},
		{http.StatusBadGateway, zapcore.WarnLevel},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			handler := RequestIDMiddleware(RequestLoggingMiddleware(zap.New(core).Sugar())(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
					_, _ = w.Write([]byte("body"))
				})))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/commands/exchange", nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, tc.level, entry.Level)
			fields := entry.ContextMap()
			assert.EqualValues(t, tc.status, fields["status"])
			assert.EqualValues(t, 4, fields["bytes"])
			assert.Equal(t, "/commands/exchange", fields["path"])
			assert.NotEmpty(t, fields["request_id"])
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}

	n, err := rw.Write([]byte("test data"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, http.StatusOK, rw.status)
	assert.Equal(t, 9, rw.size)
}
