package directory

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dronewatch/internal/owner"
	"dronewatch/internal/upstream"
	"dronewatch/pkg/platform/circuit"
	"dronewatch/pkg/platform/sentinel"
)

const ownerBody = `{
	"first_name": "Ada",
	"last_name": "Lovelace",
	"social_security_number": "010101-123A",
	"phone_number": "+358401234567",
	"email": "ada@example.com",
	"purchased_at": "2024-03-01T12:00:00Z"
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOwnerURL(t *testing.T) {
	tests := []struct {
		name     string
		template string
		id       string
		want     string
	}{
		{name: "placeholder", template: "http://dir.test/users/{owner_id}/profile", id: "u1", want: "http://dir.test/users/u1/profile"},
		{name: "appended", template: "http://dir.test/users", id: "42", want: "http://dir.test/users/42"},
		{name: "trailing slashes trimmed", template: "http://dir.test/users//", id: "42", want: "http://dir.test/users/42"},
		{name: "id is escaped", template: "http://dir.test/users/{owner_id}", id: "a/b c", want: "http://dir.test/users/a%2Fb%20c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OwnerURL(tt.template, tt.id))
		})
	}
}

func TestLookup_Success(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(ownerBody))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/users/{owner_id}", discardLogger())
	require.NoError(t, err)

	rec, err := c.Lookup(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "/users/u1", gotPath)
	assert.Equal(t, owner.Record{
		FirstName:            "Ada",
		LastName:             "Lovelace",
		SocialSecurityNumber: "010101-123A",
		PhoneNumber:          "+358401234567",
		Email:                "ada@example.com",
		PurchasedAt:          time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}, rec)
}

func TestLookup_AcceptsNaivePurchaseTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"first_name":"Ada","last_name":"Lovelace","social_security_number":"010101-123A",` +
			`"phone_number":"+358401234567","email":"ada@example.com","purchased_at":"2024-03-01T12:00:00"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/users", discardLogger())
	require.NoError(t, err)

	rec, err := c.Lookup(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), rec.PurchasedAt)
}

func TestLookup_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category upstream.Category
	}{
		{name: "not found", status: http.StatusNotFound, body: `{}`, category: upstream.CategoryBadStatus},
		{name: "server error", status: http.StatusBadGateway, body: ``, category: upstream.CategoryBadStatus},
		{name: "malformed body", status: http.StatusOK, body: `{"first_name":`, category: upstream.CategoryBadData},
		{name: "missing field", status: http.StatusOK, body: `{"first_name":"Ada","last_name":"L"}`, category: upstream.CategoryContractMismatch},
		{name: "bad email", status: http.StatusOK, body: `{"first_name":"A","last_name":"L","social_security_number":"1","phone_number":"2","email":"nope","purchased_at":"2024-03-01T12:00:00Z"}`, category: upstream.CategoryContractMismatch},
		{name: "bad timestamp", status: http.StatusOK, body: `{"first_name":"A","last_name":"L","social_security_number":"1","phone_number":"2","email":"a@b.co","purchased_at":"yesterday"}`, category: upstream.CategoryBadData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := New(srv.URL, discardLogger())
			require.NoError(t, err)

			rec, err := c.Lookup(context.Background(), "u1")
			require.Error(t, err)
			assert.Equal(t, owner.Record{}, rec)
			assert.Equal(t, tt.category, upstream.CategoryOf(err))
		})
	}
}

func TestLookup_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL, discardLogger(), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "u1")
	assert.Equal(t, upstream.CategoryTimeout, upstream.CategoryOf(err))
}

func TestLookup_NotConfigured(t *testing.T) {
	c, err := New("", discardLogger())
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "u1")
	assert.ErrorIs(t, err, sentinel.ErrNotConfigured)
}

func TestLookup_BreakerFailsFastAfterOutages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := circuit.New("owner-directory", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	c, err := New(srv.URL, discardLogger(), WithBreaker(breaker))
	require.NoError(t, err)

	for range 2 {
		_, err = c.Lookup(context.Background(), "u1")
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	_, err = c.Lookup(context.Background(), "u1")
	assert.Equal(t, upstream.CategoryCircuitOpen, upstream.CategoryOf(err))
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not reach the directory")
}

func TestLookup_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	breaker := circuit.New("owner-directory", circuit.WithFailureThreshold(1))
	c, err := New(srv.URL, discardLogger(), WithBreaker(breaker))
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "missing")
	require.Error(t, err)
	assert.False(t, breaker.IsOpen())
}

func TestLookup_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(ownerBody))
	}))
	defer srv.Close()

	c, err := New(srv.URL, discardLogger(), WithRateLimit(0.001))
	require.NoError(t, err)

	_, err = c.Lookup(context.Background(), "u1")
	require.NoError(t, err, "first lookup uses the initial burst")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Lookup(ctx, "u2")
	require.Error(t, err)
	assert.Equal(t, upstream.CategoryTimeout, upstream.CategoryOf(err))
}
