package fetch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test adapters
// ==========================

type funcAdapter struct {
	name string
	fn   func(ctx context.Context) ([]models.Record, error)
}

func (a funcAdapter) Name() string { return a.name }

func (a funcAdapter) Fetch(ctx context.Context, _, _ string) ([]models.Record, error) {
	return a.fn(ctx)
}

func evidence(source, title string) models.EvidenceRecord {
	return models.EvidenceRecord{SourceID: source, Kind: "text", Title: title}
}

func staticAdapter(name string, delay time.Duration, records ...models.Record) funcAdapter {
	return funcAdapter{name: name, fn: func(ctx context.Context) ([]models.Record, error) {
		select {
		case <-time.After(delay):
			return records, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}}
}

func newTestOrchestrator(t *testing.T, limit int, timeout time.Duration) *Orchestrator {
	t.Helper()
	return New(Config{ConcurrencyLimit: limit, Timeout: timeout}, logger.NewTestLogger(t))
}

// ==========================
// Partial failure
// ==========================

func TestFetchAll_FailingAdapterContributesNothing(t *testing.T) {
	o := newTestOrchestrator(t, 8, time.Second)

	adapters := []Adapter{
		funcAdapter{name: "broken", fn: func(context.Context) ([]models.Record, error) {
			return nil, errors.New("upstream 500")
		}},
		staticAdapter("healthy", 0, evidence("trusted_univ", "Sow after first rains")),
	}

	records := o.FetchAll(context.Background(), adapters, "when to sow", "")
	require.Len(t, records, 1)
	assert.Equal(t, "Sow after first rains", records[0].(models.EvidenceRecord).Title)
}

func TestFetchAll_TimeoutContributesNothing(t *testing.T) {
	o := newTestOrchestrator(t, 8, 50*time.Millisecond)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	adapters := []Adapter{
		funcAdapter{name: "stuck", fn: func(context.Context) ([]models.Record, error) {
			<-release // ignores its context on purpose
			return []models.Record{evidence("late", "too late")}, nil
		}},
		staticAdapter("fast", 0, evidence("mock_crop_db", "Maize spacing")),
	}

	start := time.Now()
	records := o.FetchAll(context.Background(), adapters, "q", "")
	elapsed := time.Since(start)

	require.Len(t, records, 1)
	assert.Equal(t, "mock_crop_db", records[0].SourceName())
	assert.Less(t, elapsed, time.Second)
}

func TestFetchAll_PanicIsRecovered(t *testing.T) {
	o := newTestOrchestrator(t, 8, time.Second)

	adapters := []Adapter{
		funcAdapter{name: "panicky", fn: func(context.Context) ([]models.Record, error) {
			panic("nil map write")
		}},
		staticAdapter("ok", 0, evidence("a", "t")),
	}

	var records []models.Record
	assert.NotPanics(t, func() {
		records = o.FetchAll(context.Background(), adapters, "q", "")
	})
	assert.Len(t, records, 1)
}

// ==========================
// Ordering and bounding
// ==========================

func TestFetchAll_PreservesAdapterOrder(t *testing.T) {
	o := newTestOrchestrator(t, 8, time.Second)

	weather := models.WeatherReading{Source: "openweather", Temperature: models.Float(21)}
	adapters := []Adapter{
		staticAdapter("slow", 60*time.Millisecond, evidence("s", "first"), evidence("s", "second")),
		staticAdapter("medium", 30*time.Millisecond, weather),
		staticAdapter("fast", 0, evidence("f", "last")),
	}

	records := o.FetchAll(context.Background(), adapters, "q", "")
	require.Len(t, records, 4)
	assert.Equal(t, "first", records[0].(models.EvidenceRecord).Title)
	assert.Equal(t, "second", records[1].(models.EvidenceRecord).Title)
	assert.Equal(t, models.KindWeather, records[2].RecordKind())
	assert.Equal(t, "last", records[3].(models.EvidenceRecord).Title)
}

func TestFetchAll_RespectsConcurrencyLimit(t *testing.T) {
	o := newTestOrchestrator(t, 2, time.Second)

	var active, peak int32
	adapters := make([]Adapter, 6)
	for i := range adapters {
		adapters[i] = funcAdapter{name: "counting", fn: func(context.Context) ([]models.Record, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return []models.Record{evidence("c", "x")}, nil
		}}
	}

	records := o.FetchAll(context.Background(), adapters, "q", "")
	assert.Len(t, records, 6)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestFetchAll_CancelledContextSkipsAdapters(t *testing.T) {
	o := newTestOrchestrator(t, 1, time.Second)

	var calls int32
	adapter := funcAdapter{name: "never", fn: func(context.Context) ([]models.Record, error) {
		atomic.AddInt32(&calls, 1)
		return []models.Record{evidence("x", "y")}, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := o.FetchAll(ctx, []Adapter{adapter, adapter, adapter}, "q", "")
	assert.Empty(t, records)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestFetchAll_CallerCancellationAbandonsInFlight(t *testing.T) {
	o := newTestOrchestrator(t, 4, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	adapter := funcAdapter{name: "waits", fn: func(ctx context.Context) ([]models.Record, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	records := o.FetchAll(ctx, []Adapter{adapter}, "q", "")
	assert.Empty(t, records)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchAll_ClampsEvidenceHints(t *testing.T) {
	o := newTestOrchestrator(t, 8, time.Second)

	rec := evidence("s", "t")
	rec.ScoreHint = 4.2
	records := o.FetchAll(context.Background(), []Adapter{staticAdapter("a", 0, rec, nil)}, "q", "")

	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].(models.EvidenceRecord).ScoreHint)
}

func TestFetchAll_DereferencesPointerReadings(t *testing.T) {
	o := newTestOrchestrator(t, 8, time.Second)

	records := o.FetchAll(context.Background(), []Adapter{staticAdapter("a", 0,
		&models.WeatherReading{Source: "w"},
		&models.SoilReading{Source: "s"},
		&models.PlantIdentification{Source: "p"},
		(*models.WeatherReading)(nil),
	)}, "q", "")

	require.Len(t, records, 3)
	assert.Equal(t, models.WeatherReading{Source: "w"}, records[0])
	assert.Equal(t, models.SoilReading{Source: "s"}, records[1])
	assert.Equal(t, models.PlantIdentification{Source: "p"}, records[2])
}

func TestFetchAll_NoAdapters(t *testing.T) {
	o := newTestOrchestrator(t, 8, time.Second)
	assert.Empty(t, o.FetchAll(context.Background(), nil, "q", ""))
}

// ==========================
// Shutdown
// ==========================

func TestShutdown_IsIdempotent(t *testing.T) {
	var mu sync.Mutex
	closed := map[string]int{}
	closer := func(name string, err error) func() error {
		return func() error {
			mu.Lock()
			defer mu.Unlock()
			closed[name]++
			return err
		}
	}

	o := New(Config{}, logger.NewTestLogger(t),
		WithCloser("http", closer("http", nil)),
		WithCloser("redis", closer("redis", errors.New("already closed"))),
	)

	first := o.Shutdown()
	second := o.Shutdown()

	assert.ErrorContains(t, first, "close redis")
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]int{"http": 1, "redis": 1}, closed)

	assert.Nil(t, o.FetchAll(context.Background(), []Adapter{staticAdapter("a", 0, evidence("s", "t"))}, "q", ""))
}

func TestNew_AppliesDefaults(t *testing.T) {
	o := New(Config{}, logger.NewNoOpLogger())
	assert.Equal(t, DefaultConcurrencyLimit, o.limit)
	assert.Equal(t, DefaultTimeout, o.timeout)
}
