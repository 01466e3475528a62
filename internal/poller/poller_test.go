package poller

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/daimoniac/sbomscan/internal/errors"
	"github.com/daimoniac/sbomscan/internal/observability"
	"github.com/daimoniac/sbomscan/internal/scanapi"
)

// fakeClock advances only when the poller sleeps
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// scriptedSource returns outcomes in order, repeating the last one
type scriptedSource struct {
	outcomes []scanapi.ScanOutcome
	err      error
	calls    int
}

func (s *scriptedSource) GetScanStatus(_ context.Context, scanID string) (scanapi.ScanOutcome, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	i := min(s.calls, len(s.outcomes)) - 1
	return s.outcomes[i], nil
}

func newTestPoller(source StatusSource, clock *fakeClock) Poller {
	return New(source, Config{
		Interval: 10 * time.Second,
		Now:      clock.Now,
		Sleep:    clock.Sleep,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPoll_ImmediateTerminal(t *testing.T) {
	clock := newFakeClock()
	source := &scriptedSource{outcomes: []scanapi.ScanOutcome{scanapi.OutcomeSuccess{}}}

	outcome, err := newTestPoller(source, clock).Poll(context.Background(), "s1", 900*time.Second)

	require.NoError(t, err)
	assert.Equal(t, scanapi.OutcomeSuccess{}, outcome)
	assert.Equal(t, 1, source.calls)
	assert.Empty(t, clock.sleeps)
}

func TestPoll_PendingThenTerminal(t *testing.T) {
	clock := newFakeClock()
	source := &scriptedSource{outcomes: []scanapi.ScanOutcome{
		scanapi.OutcomePending{},
		scanapi.OutcomePending{},
		scanapi.OutcomeSkipped{Reason: "no manifests"},
	}}

	outcome, err := newTestPoller(source, clock).Poll(context.Background(), "s1", 900*time.Second)

	require.NoError(t, err)
	assert.Equal(t, scanapi.OutcomeSkipped{Reason: "no manifests"}, outcome)
	assert.Equal(t, 3, source.calls)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, clock.sleeps)
}

func TestPoll_Timeout(t *testing.T) {
	clock := newFakeClock()
	source := &scriptedSource{outcomes: []scanapi.ScanOutcome{scanapi.OutcomePending{}}}

	_, err := newTestPoller(source, clock).Poll(context.Background(), "s1", 20*time.Second)

	assert.ErrorIs(t, err, apierrors.ErrScanTimeout)
	// queries at t=0, 10 and 20; the third observes elapsed == deadline
	assert.Equal(t, 3, source.calls)
	assert.Len(t, clock.sleeps, 2)
}

func TestPoll_ZeroDeadline(t *testing.T) {
	clock := newFakeClock()
	source := &scriptedSource{outcomes: []scanapi.ScanOutcome{scanapi.OutcomePending{}}}

	_, err := newTestPoller(source, clock).Poll(context.Background(), "s1", 0)

	assert.ErrorIs(t, err, apierrors.ErrScanTimeout)
	assert.Equal(t, 1, source.calls)
	assert.Empty(t, clock.sleeps)
}

func TestPoll_SubSecondElapsedIsFloored(t *testing.T) {
	clock := newFakeClock()
	source := &scriptedSource{outcomes: []scanapi.ScanOutcome{
		scanapi.OutcomePending{},
		scanapi.OutcomePending{},
		scanapi.OutcomeSuccess{},
	}}
	p := New(source, Config{
		Interval: 10 * time.Second,
		Now:      clock.Now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			return clock.Sleep(ctx, d+700*time.Millisecond)
		},
	}, nil)

	// 10.7s elapsed counts as 10s, which is still inside a 10.5s deadline
	_, err := p.Poll(context.Background(), "s1", 10500*time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, 3, source.calls)
}

func TestPoll_GatewayErrorIsReturnedImmediately(t *testing.T) {
	clock := newFakeClock()
	apiErr := apierrors.NewAPIError(500, "scan backend unavailable")
	source := &scriptedSource{err: apiErr}

	_, err := newTestPoller(source, clock).Poll(context.Background(), "s1", 900*time.Second)

	assert.Same(t, apiErr, err)
	assert.Equal(t, 1, source.calls)
	assert.Empty(t, clock.sleeps)
}

func TestPoll_ContextCanceledDuringSleep(t *testing.T) {
	source := &scriptedSource{outcomes: []scanapi.ScanOutcome{scanapi.OutcomePending{}}}
	p := New(source, Config{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Poll(ctx, "s1", 900*time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, source.calls)
}

func TestPoll_CountsStatusQueries(t *testing.T) {
	metrics := observability.GetMetrics()
	before := testutil.ToFloat64(metrics.StatusPolls)

	clock := newFakeClock()
	source := &scriptedSource{outcomes: []scanapi.ScanOutcome{
		scanapi.OutcomePending{},
		scanapi.OutcomeFailure{},
	}}

	_, err := newTestPoller(source, clock).Poll(context.Background(), "s1", 900*time.Second)

	require.NoError(t, err)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.StatusPolls))
}
