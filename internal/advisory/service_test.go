package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/agriguard/internal/providers"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, label string) (Record, error)
}

func newFakeFetcher(fn func(ctx context.Context, label string) (Record, error)) *fakeFetcher {
	return &fakeFetcher{calls: make(map[string]int), fn: fn}
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchAdvisory(ctx context.Context, label string) (Record, error) {
	f.mu.Lock()
	f.calls[label]++
	f.mu.Unlock()
	return f.fn(ctx, label)
}

func (f *fakeFetcher) count(label string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[label]
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func recordFor(label string) Record {
	return Record{
		PrimaryTreatment:   "Treatment for " + label,
		OrganicAlternative: "Neem oil",
		Description:        "A pest called " + label + ".",
		ActionPlan:         "Scout the field twice a week.",
		Severity:           SeverityMedium,
		AffectedTargets:    []string{"rice", "wheat"},
		Source:             "fake",
	}
}

func okFetcher() *fakeFetcher {
	return newFakeFetcher(func(_ context.Context, label string) (Record, error) {
		return recordFor(label), nil
	})
}

func TestLookup_SecondCallIsCacheHit(t *testing.T) {
	f := okFetcher()
	svc := NewService(f, Options{})

	first, err := svc.Lookup(context.Background(), "aphids")
	require.NoError(t, err)
	second, err := svc.Lookup(context.Background(), "aphids")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.count("aphids"))
	assert.Equal(t, recordFor("aphids"), first)
}

func TestLookup_DistinctLabelsAreIsolated(t *testing.T) {
	f := okFetcher()
	svc := NewService(f, Options{})

	aphids, err := svc.Lookup(context.Background(), "aphids")
	require.NoError(t, err)
	thrips, err := svc.Lookup(context.Background(), "thrips")
	require.NoError(t, err)

	assert.Equal(t, "Treatment for aphids", aphids.PrimaryTreatment)
	assert.Equal(t, "Treatment for thrips", thrips.PrimaryTreatment)
	assert.Equal(t, 1, f.count("aphids"))
	assert.Equal(t, 1, f.count("thrips"))
	assert.Len(t, svc.Snapshot(), 2)
}

func TestLookup_LabelsAreCaseSensitive(t *testing.T) {
	f := okFetcher()
	svc := NewService(f, Options{})

	_, _ = svc.Lookup(context.Background(), "Thrips")
	_, _ = svc.Lookup(context.Background(), "thrips")

	assert.Equal(t, 1, f.count("Thrips"))
	assert.Equal(t, 1, f.count("thrips"))
}

func TestLookup_ReturnedRecordIsACopy(t *testing.T) {
	svc := NewService(okFetcher(), Options{})

	rec, err := svc.Lookup(context.Background(), "aphids")
	require.NoError(t, err)
	rec.AffectedTargets[0] = "tampered"
	rec.PrimaryTreatment = "tampered"

	again, err := svc.Lookup(context.Background(), "aphids")
	require.NoError(t, err)
	assert.Equal(t, []string{"rice", "wheat"}, again.AffectedTargets)
	assert.Equal(t, "Treatment for aphids", again.PrimaryTreatment)
}

func TestLookup_EmptyLabel(t *testing.T) {
	f := okFetcher()
	svc := NewService(f, Options{})

	for _, label := range []string{"", "   "} {
		rec, err := svc.Lookup(context.Background(), label)
		assert.ErrorIs(t, err, ErrInvalidLabel)
		assert.True(t, IsFallback(rec))
		assert.Equal(t, SeverityUnknown, rec.Severity)
		assert.NoError(t, rec.Validate())
	}
	assert.Zero(t, f.total())
	assert.Empty(t, svc.Snapshot())
}

func TestLookup_FetchErrorGivesCompleteFallback(t *testing.T) {
	f := newFakeFetcher(func(context.Context, string) (Record, error) {
		return Record{}, ErrProviderUnavailable
	})
	svc := NewService(f, Options{})

	rec, err := svc.Lookup(context.Background(), "mole cricket")
	require.NoError(t, err)

	assert.True(t, IsFallback(rec))
	assert.Equal(t, FallbackTreatment, rec.PrimaryTreatment)
	assert.NotEmpty(t, rec.Description)
	assert.NotEmpty(t, rec.ActionPlan)
	assert.Equal(t, SeverityUnknown, rec.Severity)
	assert.NotNil(t, rec.AffectedTargets)
	assert.Empty(t, rec.AffectedTargets)
	assert.Contains(t, rec.Description, "could not be reached")
	assert.NoError(t, rec.Validate())
}

func TestLookup_InvalidRecordFromFetcherFallsBack(t *testing.T) {
	f := newFakeFetcher(func(context.Context, string) (Record, error) {
		return Record{PrimaryTreatment: "Spinosad", Severity: "extreme"}, nil
	})
	svc := NewService(f, Options{})

	rec, err := svc.Lookup(context.Background(), "thrips")
	require.NoError(t, err)
	assert.True(t, IsFallback(rec))
	assert.Contains(t, rec.Description, "could not be understood")
}

func TestLookup_TimeoutFallbackIsCached(t *testing.T) {
	f := newFakeFetcher(func(ctx context.Context, _ string) (Record, error) {
		<-ctx.Done()
		return Record{}, errors.Join(ErrProviderUnavailable, ctx.Err())
	})
	svc := NewService(f, Options{Timeout: 20 * time.Millisecond})

	rec, err := svc.Lookup(context.Background(), "unknown pest X")
	require.NoError(t, err)
	assert.Equal(t, SeverityUnknown, rec.Severity)
	assert.True(t, IsFallback(rec))
	assert.Contains(t, rec.Description, "did not answer in time")

	again, err := svc.Lookup(context.Background(), "unknown pest X")
	require.NoError(t, err)
	assert.Equal(t, rec, again)
	assert.Equal(t, 1, f.count("unknown pest X"))
}

func TestLookup_RetryPolicyDoesNotCacheFallback(t *testing.T) {
	var mu sync.Mutex
	fail := true
	f := newFakeFetcher(func(_ context.Context, label string) (Record, error) {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			fail = false
			return Record{}, ErrProviderUnavailable
		}
		return recordFor(label), nil
	})
	svc := NewService(f, Options{Policy: FallbackRetry})

	rec, err := svc.Lookup(context.Background(), "locust")
	require.NoError(t, err)
	assert.True(t, IsFallback(rec))
	assert.Empty(t, svc.Snapshot())

	rec, err = svc.Lookup(context.Background(), "locust")
	require.NoError(t, err)
	assert.False(t, IsFallback(rec))
	assert.Equal(t, 2, f.count("locust"))

	_, _ = svc.Lookup(context.Background(), "locust")
	assert.Equal(t, 2, f.count("locust"))
}

func TestLookup_ConcurrentCallersShareOneFetch(t *testing.T) {
	release := make(chan struct{})
	f := newFakeFetcher(func(_ context.Context, label string) (Record, error) {
		<-release
		return recordFor(label), nil
	})
	svc := NewService(f, Options{})

	const callers = 20
	results := make([]Record, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := svc.Lookup(context.Background(), "wireworm")
			assert.NoError(t, err)
			results[i] = rec
		}()
	}

	require.Eventually(t, func() bool { return f.count("wireworm") == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, f.count("wireworm"))
	for _, rec := range results {
		assert.Equal(t, results[0], rec)
	}
	assert.Equal(t, recordFor("wireworm"), results[0])
}

func TestLookup_AbandonedCallerStillCachesLateResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := newFakeFetcher(func(_ context.Context, label string) (Record, error) {
		close(started)
		<-release
		return recordFor(label), nil
	})
	svc := NewService(f, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Record, 1)
	go func() {
		rec, err := svc.Lookup(ctx, "stem borer")
		assert.NoError(t, err)
		done <- rec
	}()

	<-started
	cancel()
	rec := <-done
	assert.True(t, IsFallback(rec))
	assert.Empty(t, svc.Snapshot(), "abandoned fallback must not be cached")

	close(release)
	require.Eventually(t, func() bool {
		_, ok := svc.Snapshot()["stem borer"]
		return ok
	}, time.Second, time.Millisecond)

	rec, err := svc.Lookup(context.Background(), "stem borer")
	require.NoError(t, err)
	assert.Equal(t, recordFor("stem borer"), rec)
	assert.Equal(t, 1, f.count("stem borer"))
}

func TestLookupAll(t *testing.T) {
	f := okFetcher()
	svc := NewService(f, Options{Concurrency: 2})

	got, err := svc.LookupAll(context.Background(), []string{"aphids", "thrips", "aphids", "", "locust"})
	require.NoError(t, err)

	assert.Len(t, got, 3)
	assert.Equal(t, "Treatment for locust", got["locust"].PrimaryTreatment)
	assert.Equal(t, 3, f.total())
}

type countingObserver struct {
	mu      sync.Mutex
	lookups map[string]int
	fetches int
}

func (o *countingObserver) ObserveLookup(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups[result]++
}

func (o *countingObserver) ObserveFetch(string, time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fetches++
}

func TestService_StatsAndObserver(t *testing.T) {
	obs := &countingObserver{lookups: map[string]int{}}
	svc := NewService(okFetcher(), Options{Observer: obs})

	_, _ = svc.Lookup(context.Background(), "aphids")
	_, _ = svc.Lookup(context.Background(), "aphids")
	_, _ = svc.Lookup(context.Background(), "aphids")
	_, _ = svc.Lookup(context.Background(), "")

	stats := svc.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	assert.Equal(t, 2, obs.lookups[ResultHit])
	assert.Equal(t, 1, obs.lookups[ResultMiss])
	assert.Equal(t, 1, obs.lookups[ResultInvalid])
	assert.Equal(t, 1, obs.fetches)
}

func TestService_Export(t *testing.T) {
	svc := NewService(okFetcher(), Options{})
	_, _ = svc.Lookup(context.Background(), "aphids")

	var buf bytes.Buffer
	require.NoError(t, svc.Export(&buf))

	var entries []struct {
		Key   string `json:"key"`
		Value Record `json:"value"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "aphids", entries[0].Key)
	assert.Equal(t, "Treatment for aphids", entries[0].Value.PrimaryTreatment)
}

func TestParseFallbackPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FallbackPolicy
		wantErr bool
	}{
		{"", FallbackCache, false},
		{"cache", FallbackCache, false},
		{" Retry ", FallbackRetry, false},
		{"never", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFallbackPolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

// fakeCompleter returns canned content and records the last request.
type fakeCompleter struct {
	content string
	err     error
	last    providers.CompletionRequest
}

func (c *fakeCompleter) Name() string { return "fake-llm" }

func (c *fakeCompleter) Complete(_ context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	c.last = req
	if c.err != nil {
		return providers.CompletionResponse{}, c.err
	}
	return providers.CompletionResponse{Content: c.content}, nil
}

func TestLLMFetcher_LegacyFieldNames(t *testing.T) {
	c := &fakeCompleter{content: `{"pesticide":"Imidacloprid","organic":"Neem oil",` +
		`"description":"Sap-sucking planthopper that causes hopper burn.",` +
		`"action":"Drain the field for three days and spray the base of the plants.",` +
		`"severity":"medium","crops_affected":"rice,wheat"}`}
	svc := NewService(NewLLMFetcher(c, nil, 512), Options{})

	rec, err := svc.Lookup(context.Background(), "brown plant hopper")
	require.NoError(t, err)

	assert.Equal(t, Record{
		PrimaryTreatment:   "Imidacloprid",
		OrganicAlternative: "Neem oil",
		Description:        "Sap-sucking planthopper that causes hopper burn.",
		ActionPlan:         "Drain the field for three days and spray the base of the plants.",
		Severity:           SeverityMedium,
		AffectedTargets:    []string{"rice", "wheat"},
		Source:             "fake-llm",
	}, rec)

	assert.Contains(t, c.last.UserPrompt, `"brown plant hopper"`)
	assert.Equal(t, SystemPrompt(), c.last.SystemPrompt)
	assert.Equal(t, 512, c.last.MaxTokens)
	assert.Equal(t, "pest_advisory", c.last.SchemaName)
	assert.NotNil(t, c.last.Schema)
}

func TestLLMFetcher_ProviderErrorIsWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	f := NewLLMFetcher(&fakeCompleter{err: cause}, nil, 0)

	_, err := f.FetchAdvisory(context.Background(), "aphids")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestLLMFetcher_MalformedContent(t *testing.T) {
	f := NewLLMFetcher(&fakeCompleter{content: "I think it is an aphid."}, nil, 0)

	_, err := f.FetchAdvisory(context.Background(), "aphids")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

type stubFetcher struct {
	name string
	rec  Record
	err  error
}

func (s stubFetcher) Name() string { return s.name }

func (s stubFetcher) FetchAdvisory(context.Context, string) (Record, error) {
	return s.rec, s.err
}

func TestChain(t *testing.T) {
	first := stubFetcher{name: "anthropic", err: ErrProviderUnavailable}
	second := stubFetcher{name: "catalog", rec: recordFor("aphids")}

	chain := Chain{first, second}
	assert.Equal(t, "anthropic+catalog", chain.Name())

	rec, err := chain.FetchAdvisory(context.Background(), "aphids")
	require.NoError(t, err)
	assert.Equal(t, recordFor("aphids"), rec)

	_, err = Chain{first, stubFetcher{name: "catalog", err: ErrMalformedResponse}}.
		FetchAdvisory(context.Background(), "aphids")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = Chain{}.FetchAdvisory(context.Background(), "aphids")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestChain_ContinuesPastExpiredDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	var sawLive bool
	offline := newFakeFetcher(func(ctx context.Context, label string) (Record, error) {
		sawLive = ctx.Err() == nil
		return recordFor(label), nil
	})
	chain := Chain{stubFetcher{name: "anthropic", err: context.DeadlineExceeded}, offline}

	rec, err := chain.FetchAdvisory(ctx, "aphids")
	require.NoError(t, err)
	assert.Equal(t, recordFor("aphids"), rec)
	assert.True(t, sawLive)
}

func TestChain_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := newFakeFetcher(func(context.Context, string) (Record, error) {
		cancel()
		return Record{}, context.Canceled
	})
	second := okFetcher()

	_, err := Chain{first, second}.FetchAdvisory(ctx, "aphids")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, second.total())
}
