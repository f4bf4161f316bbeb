package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/argus/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	defaultQueueSize = 300
	taskTimeout      = 5 * time.Minute
	maxRetryDelay    = 30 * time.Second
)

type SchedulerConfig struct {
	Interval    time.Duration // 0 disables periodic ingestion
	WorkerCount int
	AutoProcess bool
	QueueSize   int
}

// Scheduler runs background ingestion on a ticker and, with AutoProcess,
// enriches each new article through a worker pool.
type Scheduler struct {
	ingester    Ingester
	sources     SourceLoader
	processor   ArticleProcessor
	interval    time.Duration
	workerCount int
	autoProcess bool
	retryDelay  func(retry int) time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

// NewScheduler builds a scheduler. sources may be nil, in which case source
// files are only read at start-up.
func NewScheduler(ingester Ingester, sources SourceLoader, processor ArticleProcessor, config SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Scheduler{
		ingester:    ingester,
		sources:     sources,
		processor:   processor,
		interval:    config.Interval,
		workerCount: max(config.WorkerCount, 1),
		autoProcess: config.AutoProcess,
		retryDelay:  backoff,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := range s.workerCount {
		s.wg.Add(1)
		go s.worker(i)
	}

	if s.interval <= 0 {
		slog.Info("Periodic ingestion disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueIngest()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueRefresh()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// QueueLength reports the number of tasks waiting for a worker.
func (s *Scheduler) QueueLength() int {
	return len(s.taskQueue)
}

// EnqueueArticle schedules enrichment and extraction for one article.
func (s *Scheduler) EnqueueArticle(article database.Article) {
	if err := s.EnqueueTask(NewProcessArticleTask(article.ID, s.processor)); err != nil {
		slog.Warn("Failed to enqueue ProcessArticleTask", "article_id", article.ID, "error", err)
	}
}

func (s *Scheduler) enqueueRefresh() {
	if s.sources == nil {
		s.enqueueIngest()
		return
	}

	if err := s.EnqueueTask(NewReloadSourcesTask(s.sources, s.enqueueIngest)); err != nil {
		slog.Warn("Failed to enqueue ReloadSourcesTask", "error", err)
	}
}

func (s *Scheduler) enqueueIngest() {
	var onCreated func(database.Article)
	if s.autoProcess {
		onCreated = s.EnqueueArticle
	}

	if err := s.EnqueueTask(NewIngestTask(s.ingester, onCreated)); err != nil {
		slog.Warn("Failed to enqueue IngestTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	delay := s.retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// backoff doubles from one second per retry, capped at maxRetryDelay.
func backoff(retry int) time.Duration {
	return min(time.Duration(1<<uint(max(retry-1, 0)))*time.Second, maxRetryDelay)
}
