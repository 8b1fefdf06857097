package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remoteAddr string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit(t *testing.T) {
	t.Run("UnderLimit", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(okHandler())

		for i := 0; i < 5; i++ {
			rec := hit(h, "192.0.2.1:1000")
			assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
			assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
			assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
		}
	})

	t.Run("OverLimit", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(okHandler())

		for i := 0; i < 2; i++ {
			require.Equal(t, http.StatusOK, hit(h, "192.0.2.2:1000").Code)
		}

		rec := hit(h, "192.0.2.2:1000")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, float64(http.StatusTooManyRequests), body["code"])
		assert.Equal(t, "rate limit exceeded", body["message"])
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.3:1000").Code)
		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.4:1000").Code)
		// Port changes must not reset the budget.
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.3:2000").Code)
	})

	t.Run("CustomKeyFunc", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{
			Max:    1,
			Window: time.Minute,
			KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-API-Key")
			},
		})(okHandler())

		byKey := func(key string) func(*http.Request) {
			return func(r *http.Request) { r.Header.Set("X-API-Key", key) }
		}

		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.5:1000", byKey("key-a")).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.5:1000", byKey("key-a")).Code)
		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.5:1000", byKey("key-b")).Code)
	})

	t.Run("ForwardedForWins", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(okHandler())

		fwd := func(r *http.Request) {
			r.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
		}

		assert.Equal(t, http.StatusOK, hit(h, "192.0.2.6:1000", fwd).Code)
		// Different RemoteAddr, same forwarded client: still one budget.
		assert.Equal(t, http.StatusTooManyRequests, hit(h, "192.0.2.7:1000", fwd).Code)
	})
}
