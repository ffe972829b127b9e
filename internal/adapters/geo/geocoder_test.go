package geo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm-copilot/internal/common/cache"
	commonhttp "farm-copilot/internal/common/http"
	"farm-copilot/internal/common/logger"
)

func newTestGeocoder(t *testing.T, handler http.HandlerFunc) (*Geocoder, cache.Cache) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	mem, err := cache.NewMemory(16, time.Minute)
	require.NoError(t, err)
	g := NewGeocoder(commonhttp.NewClient(5*time.Second), srv.URL, "geo-key", mem, logger.NewTestLogger(t))
	return g, mem
}

func TestLookup_ResolvesAndCaches(t *testing.T) {
	var calls int32
	g, mem := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/direct", r.URL.Path)
		assert.Equal(t, "Akkampally", r.URL.Query().Get("q"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "geo-key", r.URL.Query().Get("appid"))
		_, _ = io.WriteString(w, `[{"name": "Akkampally", "lat": 17.1, "lon": 78.6, "country": "IN"}]`)
	})

	coords, err := g.Lookup(context.Background(), "Akkampally")
	require.NoError(t, err)
	assert.Equal(t, 17.1, coords.Lat)
	assert.Equal(t, 78.6, coords.Lon)
	assert.Equal(t, "IN", coords.Country)

	_, ok := mem.Get(context.Background(), "geocode:akkampally")
	assert.True(t, ok)

	again, err := g.Lookup(context.Background(), "  AKKAMPALLY ")
	require.NoError(t, err)
	assert.Equal(t, coords, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLookup_UnknownPlace(t *testing.T) {
	g, mem := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := g.Lookup(context.Background(), "Atlantis")
	var notFound *ErrNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Atlantis", notFound.Location)

	_, ok := mem.Get(context.Background(), CacheKey("Atlantis"))
	assert.False(t, ok)
}

func TestLookup_ConcurrentCallersShareOneRequest(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = io.WriteString(w, `[{"lat": 1, "lon": 2}]`)
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coords, err := g.Lookup(context.Background(), "Pune")
			assert.NoError(t, err)
			assert.Equal(t, 2.0, coords.Lon)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLookup_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := g.Lookup(ctx, "Nashik")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLookup_AbandonedLookupStopsAtResolveTimeout(t *testing.T) {
	stopped := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(stopped)
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	mem, err := cache.NewMemory(16, time.Minute)
	require.NoError(t, err)
	g := NewGeocoder(commonhttp.NewClient(time.Minute), srv.URL, "geo-key", mem, logger.NewTestLogger(t),
		WithResolveTimeout(100*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Lookup(ctx, "Nashik")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream lookup kept running after the resolve timeout")
	}
}

func TestWithResolveTimeout_IgnoresNonPositive(t *testing.T) {
	g := NewGeocoder(commonhttp.NewClient(time.Second), "http://geo", "", nil, logger.NewNoOpLogger(), WithResolveTimeout(0))
	assert.Equal(t, DefaultResolveTimeout, g.resolveTimeout)
}

func TestLookup_UpstreamError(t *testing.T) {
	g, _ := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"cod": 401, "message": "Invalid API key"}`)
	})

	_, err := g.Lookup(context.Background(), "Pune")
	var statusErr *commonhttp.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}
