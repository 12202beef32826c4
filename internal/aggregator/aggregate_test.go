package aggregator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/store/memory"
)

func newTestOrchestrator(t *testing.T, providers ...*fakeProvider) (*Orchestrator, *memory.Store) {
	t.Helper()
	st := memory.New()
	o := New(st, nil, nil, Config{})
	for _, p := range providers {
		o.RegisterProvider(p)
	}
	return o, st
}

func TestAggregateAll_InsertsThenUpdates(t *testing.T) {
	a := &fakeProvider{name: "alpha", items: []domain.RawListing{
		listing("", "1", day(1)), listing("", "2", day(2)),
	}}
	b := &fakeProvider{name: "beta", items: []domain.RawListing{
		listing("", "1", day(3)),
	}}
	o, st := newTestOrchestrator(t, a, b)

	first, err := o.AggregateAll(context.Background(), domain.SearchCriteria{Keywords: "go"})
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalFound)
	assert.Equal(t, 3, first.TotalInserted)
	assert.Zero(t, first.TotalUpdated)
	assert.Equal(t, 3, st.Len())

	second, err := o.AggregateAll(context.Background(), domain.SearchCriteria{Keywords: "go"})
	require.NoError(t, err)
	assert.Zero(t, second.TotalInserted)
	assert.Equal(t, 3, second.TotalUpdated)
	assert.Equal(t, 3, st.Len(), "re-running must not create duplicates")

	require.Len(t, second.Results, 2)
	assert.Equal(t, "alpha", second.Results[0].Provider)
	assert.Equal(t, "beta", second.Results[1].Provider)
	assert.Same(t, second, o.LastSummary())
	assert.False(t, o.Running())
}

func TestAggregateAll_SingleFlight(t *testing.T) {
	slow := &fakeProvider{
		name:    "slow",
		items:   []domain.RawListing{listing("", "1", day(1))},
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	o, _ := newTestOrchestrator(t, slow)

	done := make(chan error, 1)
	go func() {
		_, err := o.AggregateAll(context.Background(), domain.SearchCriteria{})
		done <- err
	}()
	<-slow.started

	assert.True(t, o.Running())
	_, err := o.AggregateAll(context.Background(), domain.SearchCriteria{})
	assert.ErrorIs(t, err, ErrAggregationRunning)
	assert.ErrorIs(t, o.StartAggregateAll(context.Background(), domain.SearchCriteria{}), ErrAggregationRunning)

	close(slow.release)
	require.NoError(t, <-done)
	assert.False(t, o.Running())
	assert.EqualValues(t, 1, slow.fetchCalls.Load())
}

func TestAggregateAll_ConcurrentCallersOnlyOneRuns(t *testing.T) {
	slow := &fakeProvider{
		name:    "slow",
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	o, _ := newTestOrchestrator(t, slow)

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rejected int
	)
	go func() {
		<-slow.started
		// Let the other callers hit the flag before releasing.
		time.Sleep(20 * time.Millisecond)
		close(slow.release)
	}()
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.AggregateAll(context.Background(), domain.SearchCriteria{}); err != nil {
				assert.ErrorIs(t, err, ErrAggregationRunning)
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, callers-int(slow.fetchCalls.Load()), rejected)
	assert.False(t, o.Running())
}

func TestAggregateAll_PanicReleasesFlag(t *testing.T) {
	bad := &fakeProvider{name: "bad", panicMsg: "boom"}
	good := &fakeProvider{name: "good", items: []domain.RawListing{listing("", "1", day(1))}}
	o, _ := newTestOrchestrator(t, bad, good)

	s, err := o.AggregateAll(context.Background(), domain.SearchCriteria{})
	require.NoError(t, err)
	require.Len(t, s.Results, 2)

	assert.Equal(t, domain.OutcomeFailed, s.Results[0].Outcome)
	require.Len(t, s.Results[0].Errors, 1)
	assert.Contains(t, s.Results[0].Errors[0], "boom")
	assert.Equal(t, domain.OutcomeOK, s.Results[1].Outcome)
	assert.Equal(t, 1, s.Results[1].Inserted)

	assert.False(t, o.Running())
	_, err = o.AggregateAll(context.Background(), domain.SearchCriteria{})
	assert.NoError(t, err)
}

func TestAggregateAll_ClassifiesOutcomes(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&fakeProvider{name: "broken", err: fmt.Errorf("upstream 500")},
		&fakeProvider{name: "tripped", err: fmt.Errorf("fetch: %w", breaker.ErrOpen)},
		&fakeProvider{name: "off", err: domain.ErrProviderDisabled},
		&fakeProvider{name: "quiet"},
		&fakeProvider{name: "fine", items: []domain.RawListing{listing("", "x", nil)}},
	)

	s, err := o.AggregateAll(context.Background(), domain.SearchCriteria{})
	require.NoError(t, err)

	got := map[string]domain.Outcome{}
	for _, r := range s.Results {
		got[r.Provider] = r.Outcome
	}
	assert.Equal(t, map[string]domain.Outcome{
		"broken":  domain.OutcomeFailed,
		"tripped": domain.OutcomeCircuitOpen,
		"off":     domain.OutcomeDisabled,
		"quiet":   domain.OutcomeEmpty,
		"fine":    domain.OutcomeOK,
	}, got)
	assert.Equal(t, 3, s.TotalErrors)
	assert.Equal(t, 1, s.TotalInserted)
}

func TestAggregateFromProvider_PerItemErrors(t *testing.T) {
	p := &fakeProvider{name: "mixed", items: []domain.RawListing{
		listing("", "ok-1", day(1)),
		listing("", "", day(2)),
		listing("", "rejected", day(3)),
		listing("", "ok-2", day(4)),
	}}
	st := &flakyStore{Store: memory.New(), failIDs: map[string]bool{"rejected": true}}
	o := New(st, nil, nil, Config{})
	o.RegisterProvider(p)

	res := o.AggregateFromProvider(context.Background(), p, domain.SearchCriteria{}.Normalize())

	assert.Equal(t, domain.OutcomeOK, res.Outcome)
	assert.Equal(t, 4, res.Found)
	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "empty external id")
	assert.Contains(t, res.Errors[1], "constraint violation")
	assert.Equal(t, 2, st.Len())
}

func TestAggregateFromProvider_FillsSource(t *testing.T) {
	p := &fakeProvider{name: "alpha", items: []domain.RawListing{listing("", "1", day(1))}}
	o, st := newTestOrchestrator(t, p)

	res := o.AggregateFromProvider(context.Background(), p, domain.SearchCriteria{}.Normalize())
	require.Empty(t, res.Errors)

	rec, err := st.FindByNaturalKey(context.Background(), "alpha", "1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsActive)
}

func TestAggregateProvider(t *testing.T) {
	p := &fakeProvider{name: "alpha", items: []domain.RawListing{listing("", "1", day(1))}}
	o, _ := newTestOrchestrator(t, p)

	res, err := o.AggregateProvider(context.Background(), "alpha", domain.SearchCriteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, domain.DefaultSearchLimit, p.lastCriteria().Limit)

	_, err = o.AggregateProvider(context.Background(), "nope", domain.SearchCriteria{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestStartAggregateAll_RunsInBackground(t *testing.T) {
	p := &fakeProvider{name: "alpha", items: []domain.RawListing{listing("", "1", day(1))}}
	o, st := newTestOrchestrator(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, o.StartAggregateAll(ctx, domain.SearchCriteria{}))
	cancel()

	assert.Eventually(t, func() bool {
		return !o.Running() && o.LastSummary() != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, st.Len(), "run must survive the caller's cancellation")
}

func TestRegisterProvider_DuplicateKeepsPosition(t *testing.T) {
	first := &fakeProvider{name: "alpha"}
	o, _ := newTestOrchestrator(t, first, &fakeProvider{name: "beta"})
	replacement := &fakeProvider{name: "alpha", items: []domain.RawListing{listing("", "1", nil)}}
	o.RegisterProvider(replacement)

	infos := o.Providers()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "beta", infos[1].Name)

	_, err := o.AggregateAll(context.Background(), domain.SearchCriteria{})
	require.NoError(t, err)
	assert.Zero(t, first.fetchCalls.Load())
	assert.EqualValues(t, 1, replacement.fetchCalls.Load())
}
