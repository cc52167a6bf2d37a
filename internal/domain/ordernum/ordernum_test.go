package ordernum

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// --- Mock implementations ---

type mockSequencer struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (m *mockSequencer) NextSequence(_ context.Context, name string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	m.values[name]++
	return m.values[name], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// --- Tests ---

func TestDailySequence_Format(t *testing.T) {
	g := NewDailySequence("CMD", "orders:consumer", 6)
	g.now = fixedClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	seq := &mockSequencer{values: map[string]int64{"orders:consumer": 41}}

	n, err := g.Next(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, "CMD20240115000042", n)

	n, err = g.Next(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, "CMD20240115000043", n)
}

func TestDailySequence_WidthOverflow(t *testing.T) {
	g := NewDailySequence("CMD", "c", 2)
	g.now = fixedClock(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	seq := &mockSequencer{values: map[string]int64{"c": 122}}

	n, err := g.Next(context.Background(), seq)
	require.NoError(t, err)
	assert.Equal(t, "CMD20240115123", n)
}

func TestDailySequence_SequencerError(t *testing.T) {
	g := NewDailySequence("CMD", "c", 6)
	_, err := g.Next(context.Background(), &mockSequencer{err: errors.New("conn reset")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conn reset")

	_, err = g.Next(context.Background(), nil)
	require.Error(t, err)
}

func TestTimestamp_Format(t *testing.T) {
	g := NewTimestamp("CMD-")
	g.now = fixedClock(time.UnixMicro(1705312800123456))

	n, err := g.Next(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "CMD-1705312800123456", n)
}

func TestTimestamp_MonotonicOnStalledClock(t *testing.T) {
	g := NewTimestamp("CMD-")
	g.now = fixedClock(time.UnixMicro(1000))

	first, err := g.Next(context.Background(), nil)
	require.NoError(t, err)
	second, err := g.Next(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "CMD-1000", first)
	assert.Equal(t, "CMD-1001", second)
}

func TestTimestamp_ClockStepsBack(t *testing.T) {
	g := NewTimestamp("CMD-")
	g.now = fixedClock(time.UnixMicro(5000))
	_, err := g.Next(context.Background(), nil)
	require.NoError(t, err)

	g.now = fixedClock(time.UnixMicro(10))
	n, err := g.Next(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "CMD-5001", n)
}

func TestGenerators_ConcurrentUnique(t *testing.T) {
	const workers = 100

	tests := []struct {
		name string
		gen  Generator
	}{
		{name: "daily", gen: NewDailySequence("CMD", "orders", 6)},
		{name: "timestamp", gen: NewTimestamp("CMD-")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := &mockSequencer{}
			numbers := make([]string, workers)

			var g errgroup.Group
			for i := range workers {
				g.Go(func() error {
					n, err := tt.gen.Next(context.Background(), seq)
					numbers[i] = n
					return err
				})
			}
			require.NoError(t, g.Wait())

			seen := make(map[string]struct{}, workers)
			for _, n := range numbers {
				require.True(t, strings.HasPrefix(n, "CMD"))
				_, dup := seen[n]
				require.False(t, dup, "duplicate order number %s", n)
				seen[n] = struct{}{}
			}
		})
	}
}
