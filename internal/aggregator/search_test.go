package aggregator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/jobhub/internal/cache"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/store/memory"
)

func keysOf(items []domain.RawListing) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Key().String()
	}
	return out
}

func TestSearchAllProviders_OrdersByPostedDate(t *testing.T) {
	a := &fakeProvider{name: "A", items: []domain.RawListing{
		listing("", "a1", day(3)), listing("", "a2", day(1)),
	}}
	b := &fakeProvider{name: "B", items: []domain.RawListing{
		listing("", "b1", day(2)),
	}}
	o, _ := newTestOrchestrator(t, a, b)

	res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{Keywords: "go", Limit: 3})

	assert.Equal(t, []string{"A:a1", "B:b1", "A:a2"}, keysOf(res.Jobs))
	assert.Equal(t, 2, a.lastCriteria().Limit, "share is ceil(limit/providers)")
	assert.Equal(t, 1, a.lastCriteria().Page)
	assert.Equal(t, domain.OutcomeOK, res.Providers["A"].Outcome)
	assert.Equal(t, 2, res.Providers["A"].Count)
}

func TestSearchAllProviders_PartialFailure(t *testing.T) {
	var providers []*fakeProvider
	for i := range 5 {
		p := &fakeProvider{name: fmt.Sprintf("p%d", i)}
		if i < 2 {
			p.err = fmt.Errorf("upstream down")
		} else {
			p.items = []domain.RawListing{listing("", "1", day(i+1))}
		}
		providers = append(providers, p)
	}
	o, _ := newTestOrchestrator(t, providers...)

	res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{Limit: 20})

	assert.Len(t, res.Jobs, 3)
	assert.Len(t, res.Providers, 5)
	assert.Equal(t, domain.OutcomeFailed, res.Providers["p0"].Outcome)
	assert.Equal(t, "upstream down", res.Providers["p1"].Error)
	assert.Equal(t, domain.OutcomeOK, res.Providers["p4"].Outcome)
}

func TestSearchAllProviders_TruncatesWithoutDuplicates(t *testing.T) {
	var providers []*fakeProvider
	for i := range 3 {
		p := &fakeProvider{name: fmt.Sprintf("src%d", i)}
		for j := range 4 {
			// Same external ids across sources, distinct dates everywhere.
			p.items = append(p.items, listing("", fmt.Sprintf("%d", j), day(1+i*4+j)))
		}
		providers = append(providers, p)
	}
	o, _ := newTestOrchestrator(t, providers...)

	res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{Limit: 10})

	require.Len(t, res.Jobs, 10)
	seen := map[domain.NaturalKey]bool{}
	for i, j := range res.Jobs {
		assert.False(t, seen[j.Key()], "duplicate %s", j.Key())
		seen[j.Key()] = true
		if i > 0 {
			assert.False(t, j.PostedAt.After(*res.Jobs[i-1].PostedAt), "not sorted at %d", i)
		}
	}
	assert.Equal(t, "src2:3", res.Jobs[0].Key().String())
}

func TestSearchAllProviders_DedupsWithinProvider(t *testing.T) {
	p := &fakeProvider{name: "dup", items: []domain.RawListing{
		listing("", "1", day(2)), listing("", "1", day(5)), listing("", "2", nil),
	}}
	o, _ := newTestOrchestrator(t, p)

	res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{Limit: 10})

	require.Len(t, res.Jobs, 2)
	assert.Equal(t, day(2), res.Jobs[0].PostedAt, "first occurrence wins")
	assert.Nil(t, res.Jobs[1].PostedAt, "undated listings sort last")
}

func TestSearchAllProviders_NoProviders(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{})
	assert.NotNil(t, res.Jobs)
	assert.Empty(t, res.Jobs)
	assert.Empty(t, res.Providers)
}

func TestSearchAllProviders_PanicIsContained(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&fakeProvider{name: "bad", panicMsg: "nil map"},
		&fakeProvider{name: "good", items: []domain.RawListing{listing("", "1", day(1))}},
	)

	res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{})

	assert.Len(t, res.Jobs, 1)
	assert.Equal(t, domain.OutcomeFailed, res.Providers["bad"].Outcome)
	assert.Contains(t, res.Providers["bad"].Error, "nil map")
}

func TestSearchAllProviders_UsesCache(t *testing.T) {
	p := &fakeProvider{name: "alpha", items: []domain.RawListing{listing("", "1", day(1))}}
	c := newMapCache()
	o := New(memory.New(), c, nil, Config{})
	o.RegisterProvider(p)
	ctx := context.Background()

	first := o.SearchAllProviders(ctx, domain.SearchCriteria{Keywords: "Go  Dev", Location: "Berlin"})
	assert.False(t, first.Providers["alpha"].Cached)
	assert.True(t, c.has(cache.SearchKey("alpha", "go dev", "berlin", 1)))

	second := o.SearchAllProviders(ctx, domain.SearchCriteria{Keywords: "go dev", Location: "berlin"})
	assert.EqualValues(t, 1, p.fetchCalls.Load())
	assert.Equal(t, domain.OutcomeCached, second.Providers["alpha"].Outcome)
	assert.Equal(t, keysOf(first.Jobs), keysOf(second.Jobs))

	o.SearchAllProviders(ctx, domain.SearchCriteria{Keywords: "go dev", Location: "berlin", BypassCache: true})
	assert.EqualValues(t, 2, p.fetchCalls.Load())
}

func TestSearchAllProviders_EmptyResultNotCached(t *testing.T) {
	p := &fakeProvider{name: "alpha"}
	c := newMapCache()
	o := New(memory.New(), c, nil, Config{})
	o.RegisterProvider(p)

	res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{})
	assert.Equal(t, domain.OutcomeEmpty, res.Providers["alpha"].Outcome)
	assert.Zero(t, c.sets)
}

func TestSearchAllProviders_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	rc := cache.NewRedis(client, logger.NewNop(), 50*time.Millisecond)
	mr.Close()

	p := &fakeProvider{name: "alpha", items: []domain.RawListing{listing("", "1", day(1))}}
	o := New(memory.New(), rc, nil, Config{})
	o.RegisterProvider(p)

	for range 2 {
		res := o.SearchAllProviders(context.Background(), domain.SearchCriteria{})
		require.Len(t, res.Jobs, 1)
		assert.False(t, res.Providers["alpha"].Cached)
	}
	assert.EqualValues(t, 2, p.fetchCalls.Load())
}

func TestJobDetails(t *testing.T) {
	detail := listing("", "42", day(1))
	p := &fakeProvider{name: "alpha", details: map[string]*domain.RawListing{"42": &detail}}
	c := newMapCache()
	o := New(memory.New(), c, nil, Config{})
	o.RegisterProvider(p)
	ctx := context.Background()

	got, err := o.JobDetails(ctx, "alpha", "42")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Source)
	assert.True(t, c.has(cache.DetailKey("alpha", "42")))

	_, err = o.JobDetails(ctx, "alpha", "42")
	require.NoError(t, err)
	assert.EqualValues(t, 1, p.detailCalls.Load())

	_, err = o.JobDetails(ctx, "alpha", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = o.JobDetails(ctx, "ghost", "42")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestJobDetails_NotSupported(t *testing.T) {
	p := &fakeProvider{name: "alpha", detailErr: domain.ErrNotSupported}
	o, _ := newTestOrchestrator(t, p)

	_, err := o.JobDetails(context.Background(), "alpha", "1")
	assert.ErrorIs(t, err, domain.ErrNotSupported)
}

func TestCheckProvidersHealth(t *testing.T) {
	up := &fakeProvider{name: "up", healthy: true}
	down := &fakeProvider{name: "down"}
	crashy := &fakeProvider{name: "crashy", healthPanic: true}
	c := newMapCache()
	o := New(memory.New(), c, nil, Config{})
	for _, p := range []*fakeProvider{up, down, crashy} {
		o.RegisterProvider(p)
	}
	ctx := context.Background()

	want := map[string]bool{"up": true, "down": false, "crashy": false}
	assert.Equal(t, want, o.CheckProvidersHealth(ctx))
	assert.Equal(t, want, o.CheckProvidersHealth(ctx))

	assert.EqualValues(t, 1, up.healthCalls.Load(), "second check must come from cache")
	assert.EqualValues(t, 1, crashy.healthCalls.Load())
}

func TestMergeListings_TieBreaksDeterministically(t *testing.T) {
	in := []domain.RawListing{
		listing("b", "2", day(1)),
		listing("a", "9", day(1)),
		listing("a", "1", day(1)),
	}
	assert.Equal(t, []string{"a:1", "a:9", "b:2"}, keysOf(mergeListings(in, 10)))
	assert.Len(t, mergeListings(in, 2), 2)
}
