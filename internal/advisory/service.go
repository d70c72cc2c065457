package advisory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mudler/xlog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/agriguard/internal/cache"
	"github.com/dshills/agriguard/internal/redact"
)

// FallbackPolicy decides whether fallback records are cached.
type FallbackPolicy string

const (
	// FallbackCache stores fallback records; a failed label is never retried.
	FallbackCache FallbackPolicy = "cache"
	// FallbackRetry returns fallback records without storing them.
	FallbackRetry FallbackPolicy = "retry"
)

// ParseFallbackPolicy converts a config value into a FallbackPolicy.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case FallbackCache, FallbackRetry:
		return p, nil
	case "":
		return FallbackCache, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q (want cache or retry)", s)
	}
}

// Lookup outcomes reported to an Observer.
const (
	ResultHit       = "hit"
	ResultMiss      = "miss"
	ResultFallback  = "fallback"
	ResultInvalid   = "invalid"
	ResultAbandoned = "abandoned"
)

// Observer receives lookup events, typically for metrics.
type Observer interface {
	ObserveLookup(result string)
	ObserveFetch(fetcher string, d time.Duration, err error)
}

// Options configures a Service.
type Options struct {
	Policy FallbackPolicy
	// Timeout bounds a single fetch. Zero means DefaultTimeout.
	Timeout time.Duration
	// Concurrency limits parallel fetches in LookupAll. Zero means DefaultConcurrency.
	Concurrency int
	Observer    Observer
}

const (
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
)

// Service resolves labels to advisory records, calling its Fetcher at most
// once per label for the lifetime of the Service.
type Service struct {
	fetcher Fetcher
	store   *cache.Store[Record]
	flights singleflight.Group
	opts    Options
}

// NewService creates a Service with its own empty cache.
func NewService(fetcher Fetcher, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = FallbackCache
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Service{
		fetcher: fetcher,
		store:   cache.New[Record](),
		opts:    opts,
	}
}

// Lookup returns the advisory for label. The returned record is always
// complete; the only error is ErrInvalidLabel, returned with a generic
// fallback record when label is empty.
//
// If ctx ends while the fetch is in flight, Lookup returns an uncached
// fallback record. The fetch keeps running and its result is still stored.
func (s *Service) Lookup(ctx context.Context, label string) (Record, error) {
	if strings.TrimSpace(label) == "" {
		s.observe(ResultInvalid)
		return Fallback(label, ErrInvalidLabel), ErrInvalidLabel
	}

	if rec, ok := s.store.Get(label); ok {
		s.observe(ResultHit)
		return rec.Clone(), nil
	}
	s.observe(ResultMiss)

	fetchCtx := context.WithoutCancel(ctx)
	ch := s.flights.DoChan(label, func() (any, error) {
		return s.resolve(fetchCtx, label), nil
	})

	select {
	case res := <-ch:
		return res.Val.(Record).Clone(), nil
	case <-ctx.Done():
		s.observe(ResultAbandoned)
		xlog.Debug("advisory lookup abandoned by caller", "label", label, "error", ctx.Err())
		return Fallback(label, ctx.Err()), nil
	}
}

// resolve performs the single fetch for label and stores the outcome.
func (s *Service) resolve(ctx context.Context, label string) Record {
	// A previous flight may have stored the label after our Get missed.
	if rec, ok := s.store.Peek(label); ok {
		return rec
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	start := time.Now()
	rec, err := s.fetcher.FetchAdvisory(ctx, label)
	if err == nil {
		err = rec.Validate()
	}
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveFetch(s.fetcher.Name(), time.Since(start), err)
	}

	if err != nil {
		xlog.Warn("advisory lookup failed, using fallback",
			"label", label, "fetcher", s.fetcher.Name(), "error", redact.Error(err))
		s.observe(ResultFallback)
		rec = Fallback(label, err)
		if s.opts.Policy == FallbackRetry {
			return rec
		}
	}

	stored, _ := s.store.PutIfAbsent(label, rec.Clone())
	return stored
}

// LookupAll resolves the distinct non-empty labels concurrently.
func (s *Service) LookupAll(ctx context.Context, labels []string) (map[string]Record, error) {
	seen := make(map[string]bool, len(labels))
	var unique []string
	for _, l := range labels {
		if strings.TrimSpace(l) == "" || seen[l] {
			continue
		}
		seen[l] = true
		unique = append(unique, l)
	}

	var mu sync.Mutex
	out := make(map[string]Record, len(unique))
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for _, label := range unique {
		g.Go(func() error {
			rec, err := s.Lookup(ctx, label)
			if err != nil {
				return err
			}
			mu.Lock()
			out[label] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot returns a copy of every cached record keyed by label.
func (s *Service) Snapshot() map[string]Record {
	entries := s.store.Entries()
	out := make(map[string]Record, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value.Clone()
	}
	return out
}

// Stats returns cache statistics.
func (s *Service) Stats() cache.Stats {
	return s.store.GetStats()
}

// Export writes the cached records as JSON.
func (s *Service) Export(w io.Writer) error {
	return s.store.Export(w)
}

// FetcherName returns the name of the underlying fetcher.
func (s *Service) FetcherName() string {
	return s.fetcher.Name()
}

func (s *Service) observe(result string) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveLookup(result)
	}
}
