package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appErrors "delivery-agent/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHTTPCapturer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		switch r.URL.Path {
		case "/capture/image":
			_, _ = w.Write([]byte(`{"handle":"img-1"}`))
		case "/capture/signature":
			_, _ = w.Write([]byte(`{"handle":""}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPCapturer(srv.URL, time.Second, zaptest.NewLogger(t))

	handle, err := c.CaptureImage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "img-1", handle)

	_, err = c.CaptureSignature(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrCaptureUnavailable, "an empty handle means the agent cancelled")
}

func TestHTTPCapturerDaemonError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "camera busy", http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewHTTPCapturer(srv.URL, time.Second, nil).CaptureImage(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrCaptureUnavailable)
	assert.ErrorContains(t, err, "camera busy")
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.CaptureImage(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrCaptureUnavailable)
	_, err = Unavailable{}.CaptureSignature(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrCaptureUnavailable)
}
