package outbox_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"dronewatch/internal/violation"
	"dronewatch/internal/violation/outbox"
	"dronewatch/internal/violation/store"
)

type message struct {
	key     string
	value   []byte
	headers map[string]string
}

type fakePublisher struct {
	mu       sync.Mutex
	sent     []message
	failFrom int // index of the first call that fails; -1 never fails
	calls    int
}

func (p *fakePublisher) Publish(_ context.Context, key string, value []byte, headers map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer func() { p.calls++ }()
	if p.failFrom >= 0 && p.calls >= p.failFrom {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, message{key: key, value: value, headers: headers})
	return nil
}

func (p *fakePublisher) messages() []message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]message(nil), p.sent...)
}

type RelaySuite struct {
	suite.Suite
	store     *store.InMemoryStore
	publisher *fakePublisher
	clock     *testclock.Clock
	relay     *outbox.Relay
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupTest() {
	s.store = store.NewInMemory(store.WithMemoryOutbox())
	s.publisher = &fakePublisher{failFrom: -1}
	s.clock = testclock.NewClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))

	relay, err := outbox.New(s.store, s.publisher, slog.New(slog.NewTextHandler(io.Discard, nil)),
		outbox.WithClock(s.clock),
		outbox.WithInterval(time.Second),
		outbox.WithBatchSize(10),
	)
	s.Require().NoError(err)
	s.relay = relay
}

func (s *RelaySuite) persist(droneIDs ...string) {
	recs := make([]violation.Record, 0, len(droneIDs))
	for _, id := range droneIDs {
		recs = append(recs, violation.Record{DroneID: id, Timestamp: s.clock.Now()})
	}
	_, err := s.store.Persist(context.Background(), recs)
	s.Require().NoError(err)
}

func (s *RelaySuite) pending() int {
	entries, err := s.store.FetchPending(context.Background(), 100)
	s.Require().NoError(err)
	return len(entries)
}

func (s *RelaySuite) TestNewRequiresDependencies() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := outbox.New(nil, s.publisher, logger)
	s.EqualError(err, "outbox source is required")
	_, err = outbox.New(s.store, nil, logger)
	s.EqualError(err, "publisher is required")
	_, err = outbox.New(s.store, s.publisher, nil)
	s.EqualError(err, "logger is required")
}

func (s *RelaySuite) TestPublishesAndMarksEntries() {
	s.persist("d1", "d2")

	n, err := s.relay.PublishPending(context.Background())
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Zero(s.pending())

	msgs := s.publisher.messages()
	s.Require().Len(msgs, 2)
	s.Equal("d1", msgs[0].key, "messages are keyed by drone id")
	s.Equal("nfz_violation_detected", msgs[0].headers["event_type"])
	s.Equal("violation", msgs[0].headers["aggregate_type"])
	s.NotEmpty(msgs[0].headers["event_id"])
	s.Contains(string(msgs[1].value), `"drone_id":"d2"`)
}

func (s *RelaySuite) TestNothingPending() {
	n, err := s.relay.PublishPending(context.Background())
	s.Require().NoError(err)
	s.Zero(n)
	s.Empty(s.publisher.messages())
}

// TestPublishFailureLeavesRemainingEntries verifies ordering is kept: entries
// after a failed publish are not attempted and stay pending with it.
func (s *RelaySuite) TestPublishFailureLeavesRemainingEntries() {
	s.persist("d1", "d2", "d3")
	s.publisher.failFrom = 1

	n, err := s.relay.PublishPending(context.Background())
	s.Require().Error(err)
	s.Equal(1, n)
	s.Equal(2, s.pending())

	s.publisher.failFrom = -1
	n, err = s.relay.PublishPending(context.Background())
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Zero(s.pending())
}

func (s *RelaySuite) TestMetricsCountPublishedAndFailed() {
	m := outbox.NewMetricsWithRegistry(prometheus.NewRegistry())
	relay, err := outbox.New(s.store, s.publisher, slog.New(slog.NewTextHandler(io.Discard, nil)),
		outbox.WithClock(s.clock),
		outbox.WithMetrics(m),
	)
	s.Require().NoError(err)

	s.persist("d1", "d2", "d3")
	s.publisher.failFrom = 1

	_, err = relay.PublishPending(context.Background())
	s.Require().Error(err)

	s.InDelta(1, promtestutil.ToFloat64(m.Published), 0)
	s.InDelta(1, promtestutil.ToFloat64(m.PublishFailures), 0)
}

func (s *RelaySuite) TestRunPollsOnInterval() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.relay.Run(ctx) }()

	// First poll happens immediately and finds nothing; then the relay waits.
	s.Require().NoError(s.clock.WaitAdvance(time.Second, time.Second, 1))
	s.persist("d1")
	s.Require().NoError(s.clock.WaitAdvance(time.Second, time.Second, 1))

	s.Eventually(func() bool { return s.pending() == 0 }, time.Second, 5*time.Millisecond)
	s.Len(s.publisher.messages(), 1)

	cancel()
	s.NoError(<-done)
}
