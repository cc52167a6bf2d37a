package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mock implementations ---

type client struct {
	orders int
	spent  decimal.Decimal
	last   time.Time
}

type mockStore struct {
	mu        sync.Mutex
	clients   map[string]*client
	upserts   int
	incErr    error
	upsertErr error
}

func newMockStore(emails ...string) *mockStore {
	m := &mockStore{clients: make(map[string]*client)}
	for _, e := range emails {
		m.clients[e] = &client{spent: decimal.Zero}
	}
	return m
}

func (m *mockStore) IncrementStats(_ context.Context, e Entry) (bool, error) {
	if m.incErr != nil {
		return false, m.incErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[e.Email]
	if !ok {
		return false, nil
	}
	c.orders++
	c.spent = c.spent.Add(e.Total)
	c.last = e.OrderedAt
	return true, nil
}

func (m *mockStore) UpsertClient(_ context.Context, e Entry) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.clients[e.Email] = &client{orders: 1, spent: e.Total, last: e.OrderedAt}
	return nil
}

func (m *mockStore) get(email string) (client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[email]
	if !ok {
		return client{}, false
	}
	return *c, true
}

func newTestService(t *testing.T, store Store, policy Policy) (*Service, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := NewService(store, policy, zap.New(core), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return s, logs
}

func testEntry(email string) Entry {
	return Entry{
		OwnerID:   10,
		Email:     email,
		Name:      "Pharmacie du Centre",
		Total:     decimal.RequireFromString("42.50"),
		OrderedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

// --- Service ---

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyIgnore, p)

	p, err = ParsePolicy(" Create ")
	require.NoError(t, err)
	assert.Equal(t, PolicyCreate, p)

	_, err = ParsePolicy("explode")
	require.Error(t, err)
}

func TestRecord_KnownClient(t *testing.T) {
	store := newMockStore("client@example.com")
	s, _ := newTestService(t, store, PolicyIgnore)

	require.NoError(t, s.Record(context.Background(), testEntry(" client@example.com ")))
	require.NoError(t, s.Record(context.Background(), testEntry("client@example.com")))

	c, ok := store.get("client@example.com")
	require.True(t, ok)
	assert.Equal(t, 2, c.orders)
	assert.True(t, decimal.RequireFromString("85.00").Equal(c.spent))
}

func TestRecord_UnknownClientIgnored(t *testing.T) {
	store := newMockStore()
	s, logs := newTestService(t, store, PolicyIgnore)

	require.NoError(t, s.Record(context.Background(), testEntry("new@example.com")))

	_, ok := store.get("new@example.com")
	assert.False(t, ok)
	assert.Equal(t, 0, store.upserts)
	assert.Equal(t, 1, logs.FilterMessage("Client not found").Len())
}

func TestRecord_UnknownClientCreated(t *testing.T) {
	store := newMockStore()
	s, _ := newTestService(t, store, PolicyCreate)

	require.NoError(t, s.Record(context.Background(), testEntry("new@example.com")))

	c, ok := store.get("new@example.com")
	require.True(t, ok)
	assert.Equal(t, 1, c.orders)
	assert.True(t, decimal.RequireFromString("42.50").Equal(c.spent))
}

func TestRecord_StoreErrors(t *testing.T) {
	store := newMockStore()
	store.incErr = errors.New("connection refused")
	s, _ := newTestService(t, store, PolicyIgnore)
	require.ErrorContains(t, s.Record(context.Background(), testEntry("a@example.com")), "connection refused")

	store = newMockStore()
	store.upsertErr = errors.New("check violation")
	s, _ = newTestService(t, store, PolicyCreate)
	require.ErrorContains(t, s.Record(context.Background(), testEntry("a@example.com")), "check violation")
}

// --- Async ---

type blockingRecorder struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Entry
}

func (b *blockingRecorder) Record(_ context.Context, e Entry) error {
	if b.release != nil {
		<-b.release
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, e)
	return nil
}

func (b *blockingRecorder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.got)
}

func newTestAsync(t *testing.T, next Recorder, opts AsyncOptions) *Async {
	t.Helper()
	a, err := NewAsync(next, opts, zap.NewNop(), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	return a
}

func TestAsync_Applies(t *testing.T) {
	store := newMockStore("client@example.com")
	s, _ := newTestService(t, store, PolicyIgnore)
	a := newTestAsync(t, s, AsyncOptions{Workers: 3, QueueSize: 16})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	for range 10 {
		require.NoError(t, a.Record(context.Background(), testEntry("client@example.com")))
	}
	require.Eventually(t, func() bool {
		c, _ := store.get("client@example.com")
		return c.orders == 10
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestAsync_DropsWhenFull(t *testing.T) {
	rec := &blockingRecorder{}
	a := newTestAsync(t, rec, AsyncOptions{Workers: 1, QueueSize: 2})

	// No workers running: the queue fills up.
	require.NoError(t, a.Record(context.Background(), testEntry("a@example.com")))
	require.NoError(t, a.Record(context.Background(), testEntry("b@example.com")))
	require.ErrorIs(t, a.Record(context.Background(), testEntry("c@example.com")), ErrQueueFull)
}

func TestAsync_DrainsOnShutdown(t *testing.T) {
	rec := &blockingRecorder{}
	a := newTestAsync(t, rec, AsyncOptions{Workers: 1, QueueSize: 8})

	for range 5 {
		require.NoError(t, a.Record(context.Background(), testEntry("a@example.com")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Run(ctx))
	assert.Equal(t, 5, rec.count())
}
