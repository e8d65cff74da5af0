package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/pricecache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	mu        sync.Mutex
	alerts    map[uint]*domain.Alert
	listErr   error
	markErr   error
	markCalls []uint
}

func newMemStore(alerts ...domain.Alert) *memStore {
	s := &memStore{alerts: make(map[uint]*domain.Alert)}
	for i := range alerts {
		alert := alerts[i]
		s.alerts[alert.ID] = &alert
	}
	return s
}

func (s *memStore) ListActive(_ context.Context) ([]domain.Alert, error) {
	return s.list(func(domain.Alert) bool { return true })
}

func (s *memStore) ListActiveBySymbol(_ context.Context, symbol string) ([]domain.Alert, error) {
	return s.list(func(a domain.Alert) bool { return a.Symbol == symbol })
}

func (s *memStore) list(match func(domain.Alert) bool) ([]domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Alert
	for _, alert := range s.alerts {
		if alert.Active && match(*alert) {
			out = append(out, *alert)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) MarkTriggered(_ context.Context, alertID uint, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls = append(s.markCalls, alertID)
	if s.markErr != nil {
		return false, s.markErr
	}
	alert, ok := s.alerts[alertID]
	if !ok || !alert.Active {
		return false, nil
	}
	alert.Active = false
	alert.TriggeredAt = &at
	return true, nil
}

func (s *memStore) get(id uint) domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.alerts[id]
}

func (s *memStore) deactivate(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[id].Active = false
}

type fakeResolver struct {
	mu      sync.Mutex
	prices  map[string]decimal.Decimal
	lookups []string
	calls   int
	hook    func()
}

func (r *fakeResolver) GetOrFetch(_ context.Context, symbols []string, _ time.Duration) map[string]domain.Quote {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lookups = append(r.lookups, symbols...)
	out := make(map[string]domain.Quote)
	for _, symbol := range symbols {
		if price, ok := r.prices[symbol]; ok {
			out[symbol] = domain.Quote{Symbol: symbol, Price: price, ObservedAt: time.Now()}
		}
	}
	if r.hook != nil {
		r.hook()
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []domain.Alert
	err    error
}

func (n *recordingNotifier) AlertTriggered(_ context.Context, alert domain.Alert, _ domain.Quote) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func newAlert(id uint, symbol, target string, direction domain.Direction) domain.Alert {
	return domain.Alert{
		ID:          id,
		UserID:      1,
		Symbol:      symbol,
		TargetPrice: decimal.RequireFromString(target),
		Direction:   direction,
		Active:      true,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func prices(kv ...string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = decimal.RequireFromString(kv[i+1])
	}
	return out
}

func newTestMonitor(t *testing.T, store AlertStore, resolver PriceResolver, notifiers ...TriggerNotifier) *Monitor {
	t.Helper()
	return NewMonitor(store, resolver, MonitorConfig{Interval: time.Second}, zaptest.NewLogger(t), notifiers...)
}

func TestRunCycleGroupsLookupsBySymbol(t *testing.T) {
	store := newMemStore(
		newAlert(1, "AAPL", "200", domain.DirectionAbove),
		newAlert(2, "AAPL", "100", domain.DirectionBelow),
		newAlert(3, "AAPL", "150", domain.DirectionAbove),
		newAlert(4, "MSFT", "500", domain.DirectionAbove),
		newAlert(5, "MSFT", "10", domain.DirectionBelow),
	)
	resolver := &fakeResolver{prices: prices("AAPL", "150", "MSFT", "300")}
	monitor := newTestMonitor(t, store, resolver)

	report, err := monitor.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, resolver.calls)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, resolver.lookups)
	assert.Equal(t, 5, report.Active)
	assert.Equal(t, 2, report.Symbols)
	assert.Equal(t, 5, report.Evaluated)
	assert.Equal(t, []domain.Evaluation{
		{AlertID: 1, Triggered: false},
		{AlertID: 2, Triggered: false},
		{AlertID: 3, Triggered: true},
		{AlertID: 4, Triggered: false},
		{AlertID: 5, Triggered: false},
	}, report.Evaluations)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, []uint{3}, store.markCalls)
}

func TestRunCycleWithNoActiveAlertsSkipsLookup(t *testing.T) {
	store := newMemStore()
	resolver := &fakeResolver{}
	monitor := newTestMonitor(t, store, resolver)

	report, err := monitor.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, resolver.calls)
	assert.Equal(t, 0, report.Active)
	assert.NotEmpty(t, report.CycleID)
}

func TestRunCycleDefersAlertsWithoutPrice(t *testing.T) {
	store := newMemStore(newAlert(1, "GHOST", "1", domain.DirectionAbove))
	resolver := &fakeResolver{prices: prices()}
	monitor := newTestMonitor(t, store, resolver)

	for i := 0; i < 2; i++ {
		report, err := monitor.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 0, report.Evaluated)
		assert.Empty(t, report.Evaluations)
	}

	alert := store.get(1)
	assert.True(t, alert.Active)
	assert.Nil(t, alert.TriggeredAt)
	assert.Empty(t, store.markCalls)
	assert.Equal(t, 2, resolver.calls)
}

func TestRunCycleTreatsRejectedTransitionAsNoOp(t *testing.T) {
	store := newMemStore(newAlert(1, "AAPL", "100", domain.DirectionAbove))
	resolver := &fakeResolver{prices: prices("AAPL", "120")}
	// The user disables the alert after it was listed but before the commit.
	resolver.hook = func() { store.deactivate(1) }
	notifier := &recordingNotifier{}
	monitor := newTestMonitor(t, store, resolver, notifier)

	report, err := monitor.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 0, report.Triggered)
	assert.Empty(t, notifier.alerts)
	assert.Nil(t, store.get(1).TriggeredAt)
}

func TestRunCycleAbortsWhenStoreCannotList(t *testing.T) {
	store := newMemStore(newAlert(1, "AAPL", "100", domain.DirectionAbove))
	store.listErr = errors.New("connection refused")
	resolver := &fakeResolver{prices: prices("AAPL", "120")}
	monitor := newTestMonitor(t, store, resolver)

	_, err := monitor.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.listErr)
	assert.Equal(t, 0, resolver.calls)
}

func TestRunCycleStopsCommittingOnStoreFailure(t *testing.T) {
	store := newMemStore(
		newAlert(1, "AAPL", "100", domain.DirectionAbove),
		newAlert(2, "AAPL", "110", domain.DirectionAbove),
	)
	store.markErr = errors.New("deadlock detected")
	resolver := &fakeResolver{prices: prices("AAPL", "120")}
	monitor := newTestMonitor(t, store, resolver)

	_, err := monitor.RunCycle(context.Background())
	require.Error(t, err)
	assert.Len(t, store.markCalls, 1)
	assert.True(t, store.get(1).Active)
	assert.True(t, store.get(2).Active)
}

func TestRunCycleCancelledBeforeCommitLeavesAlertsActive(t *testing.T) {
	store := newMemStore(newAlert(1, "AAPL", "100", domain.DirectionAbove))
	ctx, cancel := context.WithCancel(context.Background())
	resolver := &fakeResolver{prices: prices("AAPL", "120"), hook: cancel}
	monitor := newTestMonitor(t, store, resolver)

	_, err := monitor.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.markCalls)
	assert.True(t, store.get(1).Active)
}

func TestRunCycleNotifierFailureDoesNotUndoTrigger(t *testing.T) {
	store := newMemStore(newAlert(1, "AAPL", "100", domain.DirectionBelow))
	resolver := &fakeResolver{prices: prices("AAPL", "90")}
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	monitor := newTestMonitor(t, store, resolver, notifier)

	report, err := monitor.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Triggered)
	require.Len(t, notifier.alerts, 1)
	assert.False(t, notifier.alerts[0].Active)
	assert.NotNil(t, notifier.alerts[0].TriggeredAt)
	assert.False(t, store.get(1).Active)
}

func TestCheckSymbolOnlyTouchesThatSymbol(t *testing.T) {
	store := newMemStore(
		newAlert(1, "AAPL", "100", domain.DirectionAbove),
		newAlert(2, "MSFT", "100", domain.DirectionAbove),
	)
	resolver := &fakeResolver{prices: prices("AAPL", "120", "MSFT", "120")}
	monitor := newTestMonitor(t, store, resolver)

	report, err := monitor.CheckSymbol(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Triggered)
	assert.Equal(t, []string{"AAPL"}, resolver.lookups)
	assert.True(t, store.get(2).Active)
}

type scriptedSource struct {
	mu    sync.Mutex
	price map[string]decimal.Decimal
	calls int
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Fetch(_ context.Context, symbols []string) map[string]domain.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := make(map[string]domain.Quote)
	for _, symbol := range symbols {
		if price, ok := s.price[symbol]; ok {
			out[symbol] = domain.Quote{Symbol: symbol, Price: price, ObservedAt: time.Now()}
		}
	}
	return out
}

func (s *scriptedSource) set(symbol, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price[symbol] = decimal.RequireFromString(price)
}

func TestMonitorEndToEndTriggersOnce(t *testing.T) {
	store := newMemStore(newAlert(1, "X", "100", domain.DirectionAbove))
	source := &scriptedSource{price: prices("X", "99")}
	cache := pricecache.New(source, pricecache.Options{Retention: time.Minute, MaxConcurrent: 2}, zaptest.NewLogger(t))
	notifier := &recordingNotifier{}
	monitor := NewMonitor(store, cache, MonitorConfig{Interval: time.Second, Freshness: time.Nanosecond}, zaptest.NewLogger(t), notifier)
	ctx := context.Background()

	report, err := monitor.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Triggered)
	assert.True(t, store.get(1).Active)

	time.Sleep(time.Millisecond)
	source.set("X", "100")
	report, err = monitor.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Triggered)
	alert := store.get(1)
	assert.False(t, alert.Active)
	require.NotNil(t, alert.TriggeredAt)
	firstTriggeredAt := *alert.TriggeredAt

	time.Sleep(time.Millisecond)
	source.set("X", "150")
	report, err = monitor.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Active)
	assert.Equal(t, 0, report.Triggered)
	assert.Equal(t, []uint{1}, store.markCalls)
	assert.Equal(t, firstTriggeredAt, *store.get(1).TriggeredAt)
	assert.Len(t, notifier.alerts, 1)
}

func TestRunReturnsAfterCancel(t *testing.T) {
	store := newMemStore(newAlert(1, "AAPL", "100", domain.DirectionAbove))
	ctx, cancel := context.WithCancel(context.Background())
	resolver := &fakeResolver{prices: prices("AAPL", "50")}
	monitor := newTestMonitor(t, store, resolver)

	done := make(chan error, 1)
	go func() { done <- monitor.Run(ctx) }()

	require.Eventually(t, func() bool {
		resolver.mu.Lock()
		defer resolver.mu.Unlock()
		return resolver.calls >= 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop")
	}
}
