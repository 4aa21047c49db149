package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmoteca/filmoteca/internal/config"
)

func TestEntryEncodeDecode(t *testing.T) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Add("X-Multi", "a")
	hdr.Add("X-Multi", "b")
	body := []byte(`{"items":[]}`)

	entry, err := encodeEntry(http.StatusOK, hdr, body)
	require.NoError(t, err)

	status, gotHdr, gotBody, ok := decodeEntry(entry)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.Equal(t, []string{"a", "b"}, gotHdr.Values("X-Multi"))
	assert.Equal(t, body, gotBody)
}

func TestDecodeEntryRejectsGarbage(t *testing.T) {
	for _, bs := range [][]byte{nil, {1, 2, 3}, make([]byte, 8)} {
		if _, _, _, ok := decodeEntry(bs); len(bs) < 8 {
			assert.False(t, ok)
		} else {
			// 8 zero bytes decode as status 0 with empty header, still well formed.
			assert.True(t, ok)
		}
	}
	// Header length pointing past the buffer.
	bad := []byte{0, 0, 0, 200, 0, 0, 1, 0}
	_, _, _, ok := decodeEntry(bad)
	assert.False(t, ok)
}

func TestCaptureWriterLimitsBuffer(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}

	n, err := cw.Write([]byte("abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 6, n, "client still gets everything")
	assert.Equal(t, "abcd", cw.buf.String(), "buffer clipped at the limit")
	assert.EqualValues(t, 6, cw.size)
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestMiddlewarePassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	for _, mw := range []echo.MiddlewareFunc{
		ResponseCache(config.CacheConfig{Enabled: true}, nil),
		ResponseCache(config.CacheConfig{Enabled: false}, nil),
		RateLimit(config.RateLimitConfig{Enabled: true}, nil),
		RateLimit(config.RateLimitConfig{Enabled: false}, nil),
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/movies", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		require.NoError(t, mw(handler)(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
}
