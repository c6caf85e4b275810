package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bbb-scraper/internal/fetch"
	"github.com/sells-group/bbb-scraper/internal/model"
)

func detailDoc(first, last string) string {
	return fmt.Sprintf(`<script>window.__PRELOADED_STATE__ = {"businessProfile":{"contactInformation":{"contacts":[{"isPrincipal":true,"name":{"first":%q,"last":%q}}]}}};</script>`, first, last)
}

type fakeFetcher struct {
	mu       sync.Mutex
	docs     map[string]string
	calls    []string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeFetcher) Document(_ context.Context, kind fetch.Kind, rawURL string) (string, bool) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if kind != fetch.KindDetail {
		return "", false
	}
	f.calls = append(f.calls, rawURL)
	doc, ok := f.docs[rawURL]
	return doc, ok
}

func TestEnrich(t *testing.T) {
	f := &fakeFetcher{docs: map[string]string{
		"https://x/a-1": detailDoc("Jane", "Doe"),
		"https://x/b-2": "<html>no state</html>",
	}}
	a := &model.Business{ID: "1", URL: "https://x/a-1"}
	b := &model.Business{ID: "2", URL: "https://x/b-2"}
	c := &model.Business{ID: "3", URL: "https://x/c-3"} // fetch fails

	stats, err := New(f, nil, 2, nil).Enrich(context.Background(), []*model.Business{a, b, c})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", model.Str(a.PrincipalContact))
	assert.Nil(t, b.PrincipalContact)
	assert.Nil(t, c.PrincipalContact)
	assert.Equal(t, Stats{Attempted: 3, Enriched: 1}, stats)
}

func TestEnrich_NoURLNeverFetched(t *testing.T) {
	f := &fakeFetcher{docs: map[string]string{}}
	rec := &model.Business{ID: "9", Name: "No Link"}
	before := *rec

	stats, err := New(f, nil, 4, nil).Enrich(context.Background(), []*model.Business{rec})
	require.NoError(t, err)

	assert.Equal(t, before, *rec)
	assert.Empty(t, f.calls)
	assert.Equal(t, 1, stats.Skipped)
	assert.Zero(t, stats.Attempted)
}

func TestEnrich_BoundedConcurrency(t *testing.T) {
	f := &fakeFetcher{docs: map[string]string{}, delay: 5 * time.Millisecond}
	var records []*model.Business
	for i := 0; i < 20; i++ {
		records = append(records, &model.Business{URL: fmt.Sprintf("https://x/p-%d", i)})
	}

	_, err := New(f, nil, 3, nil).Enrich(context.Background(), records)
	require.NoError(t, err)
	assert.Len(t, f.calls, 20)
	assert.LessOrEqual(t, f.peak.Load(), int32(3))
}

func TestEnrich_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{docs: map[string]string{}}

	_, err := New(f, nil, 1, nil).Enrich(ctx, []*model.Business{{URL: "https://x/a-1"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls)
}

func TestEnrich_URLFilterSkipsForeignProfiles(t *testing.T) {
	f := &fakeFetcher{docs: map[string]string{
		"https://www.bbb.org/us/md/acme-0011-123": detailDoc("Jane", "Doe"),
		"https://attacker.example/us/md/x-1":      detailDoc("Eve", "Mallory"),
	}}
	own := &model.Business{URL: "https://www.bbb.org/us/md/acme-0011-123"}
	foreign := &model.Business{URL: "https://attacker.example/us/md/x-1"}

	sameHost := func(rawURL string) bool {
		return strings.HasPrefix(rawURL, "https://www.bbb.org/")
	}
	stats, err := New(f, nil, 2, nil, WithURLFilter(sameHost)).
		Enrich(context.Background(), []*model.Business{own, foreign})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", model.Str(own.PrincipalContact))
	assert.Nil(t, foreign.PrincipalContact)
	assert.Equal(t, []string{"https://www.bbb.org/us/md/acme-0011-123"}, f.calls)
	assert.Equal(t, Stats{Attempted: 1, Enriched: 1, Skipped: 1}, stats)
}
