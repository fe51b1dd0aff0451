package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch/internal/drone"
	"dronewatch/internal/upstream"
	"dronewatch/pkg/platform/sentinel"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	require.NoError(t, err)
	return c
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestNew_RequiresLogger(t *testing.T) {
	_, err := New("http://feed.test", nil)
	assert.EqualError(t, err, "logger is required")
}

func TestFetch_ReturnsPositions(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `[
		{"id":"d1","owner_id":"u1","x":10,"y":10,"z":5},
		{"id":"d2","owner_id":7,"x":2000,"y":0,"z":0}
	]`))

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []drone.Position{
		{DroneID: "d1", OwnerID: drone.NewOwnerID("u1"), X: 10, Y: 10, Z: 5},
		{DroneID: "d2", OwnerID: drone.NumericOwnerID(7), X: 2000},
	}, got)
}

func TestFetch_EmptyList(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `[]`))

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFetch_SkipsInvalidItems(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `[
		{"id":"d1","owner_id":"u1","x":1,"y":1,"z":1},
		{"owner_id":"u2","x":1,"y":1,"z":1},
		{"id":"d3","x":1,"y":1,"z":1},
		{"id":"d3b","owner_id":"","x":1,"y":1,"z":1},
		{"id":"d4","owner_id":"u4","x":"far","y":1,"z":1},
		"not an object",
		{"id":"d5","owner_id":5,"x":3,"y":4,"z":0}
	]`))

	got, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].DroneID)
	assert.Equal(t, "d5", got[1].DroneID)
}

func TestFetch_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		category upstream.Category
	}{
		{
			name:     "server error",
			handler:  respond(http.StatusInternalServerError, `{"detail":"boom"}`),
			category: upstream.CategoryBadStatus,
		},
		{
			name:     "not a list",
			handler:  respond(http.StatusOK, `{"drones":[]}`),
			category: upstream.CategoryContractMismatch,
		},
		{
			name:     "not json",
			handler:  respond(http.StatusOK, `<html>maintenance</html>`),
			category: upstream.CategoryBadData,
		},
		{
			name:     "empty body",
			handler:  respond(http.StatusOK, ``),
			category: upstream.CategoryBadData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)

			got, err := c.Fetch(context.Background())
			require.Error(t, err)
			assert.Empty(t, got)

			var uerr *upstream.Error
			require.True(t, errors.As(err, &uerr))
			assert.Equal(t, tt.category, uerr.Category)
			assert.Equal(t, "drone-feed", uerr.Source)
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithTimeout(20*time.Millisecond))
	defer close(release)

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, upstream.CategoryTimeout, upstream.CategoryOf(err))
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, `[]`))
	url := srv.URL
	srv.Close()

	c, err := New(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = c.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, upstream.CategoryOutage, upstream.CategoryOf(err))
}

func TestCheck(t *testing.T) {
	c, err := New("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Check(), sentinel.ErrNotConfigured)

	_, err = c.Fetch(context.Background())
	assert.Error(t, err)
}
