package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// DroneFeedServer serves a fixed drone list on any path.
type DroneFeedServer struct {
	*httptest.Server

	mu     sync.Mutex
	body   string
	status int
	hits   atomic.Int32
}

// NewDroneFeedServer starts a feed returning body with 200 OK.
func NewDroneFeedServer(t *testing.T, body string) *DroneFeedServer {
	t.Helper()
	s := &DroneFeedServer{body: body, status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		body, status := s.body, s.status
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

// Respond changes what the feed returns next.
func (s *DroneFeedServer) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.body = status, body
}

// Hits returns how many requests the feed has served.
func (s *DroneFeedServer) Hits() int {
	return int(s.hits.Load())
}

// OwnerDirectoryServer serves owners from a map keyed by the last path segment.
// Unknown owners get 404.
type OwnerDirectoryServer struct {
	*httptest.Server

	owners map[string]any
	hits   atomic.Int32
}

// NewOwnerDirectoryServer starts a directory for the given owners.
func NewOwnerDirectoryServer(t *testing.T, owners map[string]any) *OwnerDirectoryServer {
	t.Helper()
	s := &OwnerDirectoryServer{owners: owners}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		o, ok := s.owners[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(o)
	}))
	t.Cleanup(s.Close)
	return s
}

// Template returns a USERS_API_URL_TEMPLATE pointing at this server.
func (s *OwnerDirectoryServer) Template() string {
	return s.URL + "/users/{owner_id}"
}

// Hits returns how many lookups the directory has served.
func (s *OwnerDirectoryServer) Hits() int {
	return int(s.hits.Load())
}

// Owner builds a valid owner directory payload.
func Owner(first, last string) map[string]string {
	return map[string]string{
		"first_name":             first,
		"last_name":              last,
		"social_security_number": "010101-123A",
		"phone_number":           "+358401234567",
		"email":                  strings.ToLower(first) + "@example.com",
		"purchased_at":           "2024-03-01T12:00:00Z",
	}
}
