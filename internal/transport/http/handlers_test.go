package httptransport

//go:generate mockgen -source=handlers.go -destination=mocks/mocks.go -package=mocks DroneFeed,ViolationReader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dronewatch/internal/drone"
	"dronewatch/internal/transport/http/mocks"
	"dronewatch/internal/upstream"
	"dronewatch/internal/violation"
	"dronewatch/pkg/testutil"
)

// =============================================================================
// API Handler Test Suite
// =============================================================================
// Justification for unit tests: status code mapping and the /nfz secret gate
// are transport concerns; the feed and store are mocked so each response
// branch can be forced.

type HandlerSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	feed       *mocks.MockDroneFeed
	violations *mocks.MockViolationReader
	router     http.Handler
}

const testSecret = "s3cret"

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.feed = mocks.NewMockDroneFeed(s.ctrl)
	s.violations = mocks.NewMockViolationReader(s.ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := New(s.feed, s.violations, 24*time.Hour, logger)
	s.router = NewRouter(h, testSecret, nil, logger)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) nfzRequest(secret string) *http.Request {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/nfz")
	if secret != "" {
		req.Header.Set("x-secret", secret)
	}
	return req
}

func (s *HandlerSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"success":"ok"}`, rr.Body.String())
}

func (s *HandlerSuite) TestRoot() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/"))
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"message":"Welcome to Airguardian API"}`, rr.Body.String())
}

func (s *HandlerSuite) TestRequestIDEchoed() {
	req := testutil.WithRequestID(testutil.NewRequest(s.T(), http.MethodGet, "/health"), "req-123")
	rr := testutil.DoRequest(s.router, req)
	s.Equal("req-123", rr.Header().Get("X-Request-ID"))
}

func (s *HandlerSuite) TestCORSAllowsAnyOrigin() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/health")
	req.Header.Set("Origin", "http://localhost:3000")
	rr := testutil.DoRequest(s.router, req)
	s.Equal("*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func (s *HandlerSuite) TestDrones() {
	s.Run("returns the feed", func() {
		s.feed.EXPECT().Fetch(gomock.Any()).Return([]drone.Position{
			{DroneID: "d1", OwnerID: drone.NumericOwnerID(7), X: 10, Y: 10, Z: 5},
			{DroneID: "d2", OwnerID: drone.NewOwnerID("u2"), X: 2000},
		}, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/drones"))
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"drones":[
			{"id":"d1","owner_id":7,"x":10,"y":10,"z":5},
			{"id":"d2","owner_id":"u2","x":2000,"y":0,"z":0}
		]}`, rr.Body.String())
	})

	s.Run("empty feed is an empty list", func() {
		s.feed.EXPECT().Fetch(gomock.Any()).Return(nil, nil)

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/drones"))
		s.Equal(http.StatusOK, rr.Code)
		s.JSONEq(`{"drones":[]}`, rr.Body.String())
	})

	s.Run("feed failure is a bad gateway", func() {
		s.feed.EXPECT().Fetch(gomock.Any()).Return(nil, upstream.StatusError("drone-feed", 500))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/drones"))
		s.Equal(http.StatusBadGateway, rr.Code)
		s.JSONEq(`{"error":"bad_gateway","error_description":"Failed to fetch drone data"}`, rr.Body.String())
	})

	s.Run("unexpected failure is internal", func() {
		s.feed.EXPECT().Fetch(gomock.Any()).Return(nil, errors.New("boom"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/drones"))
		s.Equal(http.StatusInternalServerError, rr.Code)
		s.JSONEq(`{"error":"internal_error"}`, rr.Body.String())
	})
}

func (s *HandlerSuite) TestViolationsRequireSecret() {
	for _, secret := range []string{"", "wrong"} {
		rr := testutil.DoRequest(s.router, s.nfzRequest(secret))
		s.Equal(http.StatusUnauthorized, rr.Code, "secret %q", secret)
		s.JSONEq(`{"error":"unauthorized","error_description":"Unauthorized"}`, rr.Body.String())
	}
}

func (s *HandlerSuite) TestViolationsUnconfiguredSecretFailsClosed() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(New(s.feed, s.violations, 0, logger), "", nil, logger)

	rr := testutil.DoRequest(router, s.nfzRequest("anything"))
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *HandlerSuite) TestViolationsQueryLast24Hours() {
	detected := time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC)
	var cutoff time.Time
	var requestNow time.Time
	s.violations.EXPECT().QuerySince(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, c time.Time) ([]violation.Record, error) {
			cutoff = c
			requestNow = time.Now()
			return []violation.Record{{ID: 1, DroneID: "d1", Timestamp: detected, OwnerFirstName: "Ada"}}, nil
		})

	rr := testutil.DoRequest(s.router, s.nfzRequest(testSecret))
	s.Equal(http.StatusOK, rr.Code)

	window := requestNow.Sub(cutoff)
	s.InDelta(float64(24*time.Hour), float64(window), float64(time.Second))

	resp := testutil.UnmarshalResponse[ViolationsResponse](s.T(), rr)
	s.Require().Len(resp.Violations, 1)
	s.Equal("d1", resp.Violations[0].DroneID)
	s.True(detected.Equal(resp.Violations[0].Timestamp))
}

func (s *HandlerSuite) TestViolationsEmpty() {
	s.violations.EXPECT().QuerySince(gomock.Any(), gomock.Any()).Return(nil, nil)

	rr := testutil.DoRequest(s.router, s.nfzRequest(testSecret))
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`{"violations":[]}`, rr.Body.String())
}

func (s *HandlerSuite) TestViolationsStoreFailure() {
	s.violations.EXPECT().QuerySince(gomock.Any(), gomock.Any()).Return(nil, errors.New("query violations: connection refused"))

	rr := testutil.DoRequest(s.router, s.nfzRequest(testSecret))
	s.Equal(http.StatusInternalServerError, rr.Code)
	s.JSONEq(`{"error":"internal_error"}`, rr.Body.String())
}

func (s *HandlerSuite) TestUnknownRoute() {
	rr := testutil.DoRequest(s.router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	s.Equal(http.StatusNotFound, rr.Code)
}
