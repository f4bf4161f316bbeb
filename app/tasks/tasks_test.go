package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/argus/app/database"
	"github.com/lysyi3m/argus/app/pipeline"
)

type fakeIngester struct {
	mu      sync.Mutex
	calls   int
	created []database.Article
	err     error
}

func (f *fakeIngester) Run(ctx context.Context) ([]database.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.created, f.err
}

type fakeProcessor struct {
	mu             sync.Mutex
	enabled        bool
	processed      []string
	extracted      []string
	processOutcome pipeline.Outcome
	extractErrors  int
	done           chan string
}

func (f *fakeProcessor) EnrichmentEnabled() bool {
	return f.enabled
}

func (f *fakeProcessor) Process(ctx context.Context, id string) pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	outcome := f.processOutcome
	if outcome == "" {
		outcome = pipeline.OutcomeSucceeded
	}
	return pipeline.Result{ArticleID: id, Outcome: outcome, Error: "boom"}
}

func (f *fakeProcessor) ExtractIndicators(ctx context.Context, id string) pipeline.IndicatorResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracted = append(f.extracted, id)
	if f.extractErrors > 0 {
		f.extractErrors--
		return pipeline.IndicatorResult{ArticleID: id, Outcome: pipeline.OutcomeFailed, Error: "store down"}
	}
	if f.done != nil {
		f.done <- id
	}
	return pipeline.IndicatorResult{ArticleID: id, Outcome: pipeline.OutcomeSucceeded}
}

type fakeLoader struct {
	runs int
	err  error
}

func (l *fakeLoader) Run() error {
	l.runs++
	return l.err
}

func (l *fakeLoader) GetConfigCount() int {
	return 1
}

func TestTask_Retries(t *testing.T) {
	task := NewTask(TaskTypeIngest, "all")

	if task.ID == "" {
		t.Error("Expected task ID to be set")
	}
	if task.GetDuration() != 0 {
		t.Errorf("Expected zero duration before start, got %v", task.GetDuration())
	}

	for range DefaultMaxRetries {
		if !task.CanRetry() {
			t.Fatalf("Expected retry to be allowed at count %d", task.GetRetryCount())
		}
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Expected no retries left")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, maxRetryDelay},
	}

	for _, tt := range tests {
		if got := backoff(tt.retry); got != tt.expected {
			t.Errorf("Expected backoff(%d) = %v, got %v", tt.retry, tt.expected, got)
		}
	}
}

func TestIngestTask_CallsBackForNewArticles(t *testing.T) {
	ingester := &fakeIngester{created: []database.Article{{ID: "a1"}, {ID: "a2"}}}

	var seen []string
	task := NewIngestTask(ingester, func(article database.Article) {
		seen = append(seen, article.ID)
	})

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(seen) != 2 || seen[0] != "a1" || seen[1] != "a2" {
		t.Errorf("Expected callbacks for [a1 a2], got %v", seen)
	}
}

func TestIngestTask_Error(t *testing.T) {
	task := NewIngestTask(&fakeIngester{err: errors.New("cancelled")}, nil)
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error to be returned")
	}
}

func TestProcessArticleTask_SkipsEnrichmentWhenDisabled(t *testing.T) {
	processor := &fakeProcessor{enabled: false}

	if err := NewProcessArticleTask("a1", processor).Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(processor.processed) != 0 {
		t.Errorf("Expected no enrichment calls, got %v", processor.processed)
	}
	if len(processor.extracted) != 1 {
		t.Errorf("Expected one extraction, got %v", processor.extracted)
	}
}

func TestProcessArticleTask_RetryResumes(t *testing.T) {
	processor := &fakeProcessor{enabled: true, extractErrors: 1}
	task := NewProcessArticleTask("a1", processor)

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected first attempt to fail")
	}
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}

	if len(processor.processed) != 1 {
		t.Errorf("Expected enrichment to run once, got %d", len(processor.processed))
	}
	if len(processor.extracted) != 2 {
		t.Errorf("Expected extraction to run twice, got %d", len(processor.extracted))
	}
}

func TestProcessArticleTask_NotFoundIsNotAnError(t *testing.T) {
	processor := &fakeProcessor{enabled: true, processOutcome: pipeline.OutcomeNotFound}

	if err := NewProcessArticleTask("gone", processor).Execute(context.Background()); err != nil {
		t.Errorf("Expected no error for deleted article, got: %v", err)
	}
	if len(processor.extracted) != 0 {
		t.Error("Expected extraction to be skipped")
	}
}

func TestProcessArticleTask_EnrichmentFailure(t *testing.T) {
	processor := &fakeProcessor{enabled: true, processOutcome: pipeline.OutcomeFailed}

	if err := NewProcessArticleTask("a1", processor).Execute(context.Background()); err == nil {
		t.Error("Expected error for failed enrichment")
	}
}

func TestReloadSourcesTask(t *testing.T) {
	loader := &fakeLoader{}
	next := false

	if err := NewReloadSourcesTask(loader, func() { next = true }).Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if loader.runs != 1 || !next {
		t.Errorf("Expected reload followed by next step, got runs=%d next=%v", loader.runs, next)
	}

	loader.err = errors.New("bad yaml")
	next = false
	if err := NewReloadSourcesTask(loader, func() { next = true }).Execute(context.Background()); err == nil {
		t.Error("Expected reload error")
	}
	if next {
		t.Error("Expected next step to be skipped after failed reload")
	}
}

func TestScheduler_AutoProcessesNewArticles(t *testing.T) {
	ingester := &fakeIngester{created: []database.Article{{ID: "a1"}, {ID: "a2"}}}
	processor := &fakeProcessor{enabled: true, done: make(chan string, 2)}

	scheduler := NewScheduler(ingester, nil, processor, SchedulerConfig{
		Interval:    time.Hour,
		WorkerCount: 2,
		AutoProcess: true,
	})
	scheduler.Start()
	defer scheduler.Stop()

	seen := map[string]bool{}
	timeout := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case id := <-processor.done:
			seen[id] = true
		case <-timeout:
			t.Fatalf("Timed out waiting for article processing, saw %v", seen)
		}
	}

	if !seen["a1"] || !seen["a2"] {
		t.Errorf("Expected both articles processed, got %v", seen)
	}
}

func TestScheduler_RetriesFailedTask(t *testing.T) {
	processor := &fakeProcessor{enabled: false, extractErrors: 1, done: make(chan string, 1)}

	scheduler := NewScheduler(&fakeIngester{}, nil, processor, SchedulerConfig{WorkerCount: 1})
	scheduler.retryDelay = func(int) time.Duration { return time.Millisecond }
	scheduler.Start()
	defer scheduler.Stop()

	if err := scheduler.EnqueueTask(NewProcessArticleTask("a1", processor)); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-processor.done:
		if id != "a1" {
			t.Errorf("Expected a1, got %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for retry")
	}
}

func TestScheduler_EnqueueAfterStop(t *testing.T) {
	scheduler := NewScheduler(&fakeIngester{}, nil, &fakeProcessor{}, SchedulerConfig{})
	scheduler.Start()
	scheduler.Stop()

	if err := scheduler.EnqueueTask(NewIngestTask(&fakeIngester{}, nil)); err == nil {
		t.Error("Expected error when enqueueing on a stopped scheduler")
	}
}

func TestScheduler_QueueFull(t *testing.T) {
	scheduler := NewScheduler(&fakeIngester{}, nil, &fakeProcessor{}, SchedulerConfig{QueueSize: 1})
	defer scheduler.Stop()

	if err := scheduler.EnqueueTask(NewIngestTask(&fakeIngester{}, nil)); err != nil {
		t.Fatal(err)
	}
	if err := scheduler.EnqueueTask(NewIngestTask(&fakeIngester{}, nil)); err == nil {
		t.Error("Expected queue full error")
	}
	if scheduler.QueueLength() != 1 {
		t.Errorf("Expected queue length 1, got %d", scheduler.QueueLength())
	}
}
