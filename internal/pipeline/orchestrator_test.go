package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/campusdata/admissions-crawler/internal/admissions"
	"github.com/campusdata/admissions-crawler/internal/metrics"
	"github.com/campusdata/admissions-crawler/internal/progress"
)

type stubFetcher struct {
	mu          sync.Mutex
	calls       []string
	pages       map[string]admissions.RawPage
	errs        map[string]error
	delay       time.Duration
	inFlight    int32
	maxInFlight int32
}

func (f *stubFetcher) Fetch(ctx context.Context, target admissions.UniversityTarget) (admissions.RawPage, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxInFlight)
		if cur <= seen || atomic.CompareAndSwapInt32(&f.maxInFlight, seen, cur) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return admissions.RawPage{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, target.URL)
	f.mu.Unlock()
	if err, ok := f.errs[target.URL]; ok {
		return admissions.RawPage{}, err
	}
	if page, ok := f.pages[target.URL]; ok {
		return page, nil
	}
	return admissions.RawPage{
		URL:        target.URL,
		FinalURL:   target.URL,
		StatusCode: 200,
		Body:       []byte("<html><body>ok</body></html>"),
		FetchedAt:  time.Now(),
		Strategy:   admissions.FetchStatic,
	}, nil
}

type stubExtractor struct {
	fields map[string]admissions.ProvisionalFields
}

func (e *stubExtractor) Extract(_ context.Context, page admissions.RawPage) (admissions.ProvisionalFields, map[string]string) {
	fields := e.fields[page.URL]
	sources := make(map[string]string, len(fields))
	for name := range fields {
		sources[name] = admissions.SourceCSS
	}
	return fields, sources
}

type collectEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (c *collectEmitter) Emit(evt progress.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *collectEmitter) stages(target string) []progress.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var stages []progress.Stage
	for _, evt := range c.events {
		if evt.Target == target {
			stages = append(stages, evt.Stage)
		}
	}
	return stages
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *memArchive) Save(_ context.Context, name string, data []byte) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[name] = append([]byte(nil), data...)
	return nil
}

func targetList(urls ...string) []admissions.UniversityTarget {
	targets := make([]admissions.UniversityTarget, len(urls))
	for i, u := range urls {
		targets[i] = admissions.UniversityTarget{Name: fmt.Sprintf("University %d", i), URL: u}
	}
	return targets
}

// TestRunOrderAndLength checks the central pipeline invariants: one record
// per target, in input order, every list field populated, failures visible
// as sentinel records.
func TestRunOrderAndLength(t *testing.T) {
	t.Parallel()
	metrics.Init()

	targets := targetList(
		"https://a.example.edu/admissions",
		"https://b.example.edu/admissions",
		"https://c.example.edu/admissions",
		"https://d.example.edu/admissions",
	)
	fetcher := &stubFetcher{
		errs: map[string]error{
			"https://b.example.edu/admissions": admissions.NewFetchError(
				admissions.FetchNonSuccessStatus, "https://b.example.edu/admissions", 404, nil),
		},
	}
	extractor := &stubExtractor{fields: map[string]admissions.ProvisionalFields{
		"https://a.example.edu/admissions": {admissions.FieldCourses: {"Computer Science BS"}},
		"https://c.example.edu/admissions": {admissions.FieldCourses: {"History BA"}},
		"https://d.example.edu/admissions": {admissions.FieldCourses: {"Biology BS"}},
	}}

	o, err := New(Config{Fetcher: fetcher, Extractor: extractor, MaxConcurrency: 2})
	require.NoError(t, err)

	records, summary, err := o.Run(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, records, len(targets))

	for i, record := range records {
		require.Equal(t, targets[i].Name, record.Name, "output order must match input order")
		for _, field := range admissions.FieldNames() {
			require.NotEmpty(t, record.Field(field), "field %s of %s", field, record.Name)
		}
	}

	require.Empty(t, records[0].Error)
	require.Contains(t, records[1].Error, "status 404")
	require.Equal(t, admissions.SentinelList(), records[1].Courses)
	require.Equal(t, []string{"History BA"}, records[2].Courses)

	require.Equal(t, 4, summary.Processed)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 3, summary.FieldFound[admissions.FieldCourses])
	require.Equal(t, 0, summary.FieldFound[admissions.FieldEarlyAdmission])
}

// TestRunConcurrencyCapOne ensures no two targets are processed at the same
// time when the pool is capped at one worker.
func TestRunConcurrencyCapOne(t *testing.T) {
	t.Parallel()
	metrics.Init()

	fetcher := &stubFetcher{delay: 20 * time.Millisecond}
	o, err := New(Config{Fetcher: fetcher, Extractor: &stubExtractor{}, MaxConcurrency: 1})
	require.NoError(t, err)

	records, _, err := o.Run(context.Background(), targetList(
		"https://same.example.edu/a",
		"https://same.example.edu/b",
		"https://same.example.edu/c",
	))
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, int32(1), atomic.LoadInt32(&fetcher.maxInFlight))
}

// TestRunDeadlineExpiry verifies an expired run still produces a full-length
// output with unfinished targets recorded as failed.
func TestRunDeadlineExpiry(t *testing.T) {
	t.Parallel()
	metrics.Init()

	fetcher := &stubFetcher{delay: 50 * time.Millisecond}
	o, err := New(Config{
		Fetcher:        fetcher,
		Extractor:      &stubExtractor{},
		MaxConcurrency: 1,
		RunTimeout:     120 * time.Millisecond,
	})
	require.NoError(t, err)

	targets := targetList(
		"https://a.example.edu", "https://b.example.edu", "https://c.example.edu",
		"https://d.example.edu", "https://e.example.edu",
	)
	records, summary, err := o.Run(context.Background(), targets)
	require.NoError(t, err)
	require.Len(t, records, len(targets))

	for i, record := range records {
		require.Equal(t, targets[i].Name, record.Name)
		for _, field := range admissions.FieldNames() {
			require.NotEmpty(t, record.Field(field))
		}
	}
	// Five sequential 50ms fetches cannot fit a 120ms budget, so the tail
	// target is guaranteed to fail on the deadline.
	require.Contains(t, records[4].Error, "deadline exceeded")
	require.GreaterOrEqual(t, summary.Failed, 1)
}

// TestRunRecordURLReflectsFetchedPage ensures the record carries the URL the
// fetcher actually succeeded on, e.g. a fallback URL.
func TestRunRecordURLReflectsFetchedPage(t *testing.T) {
	t.Parallel()
	metrics.Init()

	primary := "https://university.example.edu/admissions"
	fallback := "https://university.example.edu/apply"
	fetcher := &stubFetcher{pages: map[string]admissions.RawPage{
		primary: {
			URL:        fallback,
			FinalURL:   fallback,
			StatusCode: 200,
			Body:       []byte("<html>fallback</html>"),
			Strategy:   admissions.FetchStatic,
		},
	}}

	o, err := New(Config{Fetcher: fetcher, Extractor: &stubExtractor{}})
	require.NoError(t, err)

	records, _, err := o.Run(context.Background(), []admissions.UniversityTarget{
		{Name: "University", URL: primary, FallbackURL: fallback},
	})
	require.NoError(t, err)
	require.Equal(t, fallback, records[0].URL)
}

// TestRunArchivesPages checks the snapshot key shape and that archive errors
// never fail the target.
func TestRunArchivesPages(t *testing.T) {
	t.Parallel()
	metrics.Init()

	store := &memArchive{}
	o, err := New(Config{Fetcher: &stubFetcher{}, Extractor: &stubExtractor{}, Archive: store})
	require.NoError(t, err)

	records, _, err := o.Run(context.Background(), targetList("https://arch.example.edu/admissions"))
	require.NoError(t, err)
	require.Empty(t, records[0].Error)

	require.Len(t, store.objects, 1)
	keyPattern := regexp.MustCompile(`^arch\.example\.edu/[0-9a-f]{16}\.html$`)
	for key, body := range store.objects {
		require.Regexp(t, keyPattern, key)
		require.Contains(t, string(body), "ok")
	}

	// A failing archive is logged, not fatal.
	broken := &memArchive{err: fmt.Errorf("bucket unavailable")}
	o, err = New(Config{Fetcher: &stubFetcher{}, Extractor: &stubExtractor{}, Archive: broken})
	require.NoError(t, err)
	records, _, err = o.Run(context.Background(), targetList("https://arch.example.edu/admissions"))
	require.NoError(t, err)
	require.Empty(t, records[0].Error)
}

// TestRunProgressSequence verifies the stage transitions emitted for
// successful and failed targets.
func TestRunProgressSequence(t *testing.T) {
	t.Parallel()
	metrics.Init()

	okURL := "https://ok.example.edu"
	badURL := "https://bad.example.edu"
	fetcher := &stubFetcher{errs: map[string]error{
		badURL: admissions.NewFetchError(admissions.FetchConnectionRefused, badURL, 0, nil),
	}}
	emitter := &collectEmitter{}

	o, err := New(Config{Fetcher: fetcher, Extractor: &stubExtractor{}, Emitter: emitter, MaxConcurrency: 1})
	require.NoError(t, err)

	targets := []admissions.UniversityTarget{
		{Name: "OK University", URL: okURL},
		{Name: "Bad University", URL: badURL},
	}
	_, _, err = o.Run(context.Background(), targets)
	require.NoError(t, err)

	require.Equal(t, []progress.Stage{
		progress.StageFetching,
		progress.StageExtracting,
		progress.StageNormalized,
		progress.StageDone,
	}, emitter.stages("OK University"))
	require.Equal(t, []progress.Stage{
		progress.StageFetching,
		progress.StageFailed,
	}, emitter.stages("Bad University"))
}

// TestNewValidation rejects configs missing required collaborators.
func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Extractor: &stubExtractor{}})
	require.Error(t, err)

	_, err = New(Config{Fetcher: &stubFetcher{}})
	require.Error(t, err)
}
