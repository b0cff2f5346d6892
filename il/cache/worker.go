package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/teranos/ilsp/errors"
	"github.com/teranos/ilsp/il/analysis"
	"github.com/teranos/ilsp/logger"
)

// Job asks the worker to refresh one file
type Job struct {
	Path string
	// Source, when non-nil, is analysed instead of reading Path
	Source    []byte
	RequestID string
}

// Outcome is delivered to the Handler once a job has run
type Outcome struct {
	Job      Job
	Result   analysis.Result
	Err      error
	Duration time.Duration
}

// Handler receives every outcome, on the goroutine that ran the job
type Handler func(ctx context.Context, o Outcome)

// WorkerConfig sizes the worker pool
type WorkerConfig struct {
	Workers     int           `json:"workers"`
	QueueSize   int           `json:"queue_size"`
	StopTimeout time.Duration `json:"stop_timeout"`
}

// DefaultWorkerConfig returns sensible defaults
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Workers:     4,
		QueueSize:   64,
		StopTimeout: 10 * time.Second,
	}
}

// Worker runs cache updates off the request path.
//
// Jobs are routed to a fixed goroutine by path hash, so updates of one path
// run in submission order while distinct paths proceed in parallel.
type Worker struct {
	cache   *SymbolCache
	cfg     WorkerConfig
	handler Handler
	logger  *zap.SugaredLogger

	queues []chan Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewWorker creates a stopped worker pool; call Start to begin processing
func NewWorker(ctx context.Context, c *SymbolCache, cfg WorkerConfig, handler Handler, log *zap.SugaredLogger) *Worker {
	def := DefaultWorkerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	if log == nil {
		log = logger.ComponentLogger("il.worker")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	queues := make([]chan Job, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan Job, cfg.QueueSize)
	}

	return &Worker{
		cache:   c,
		cfg:     cfg,
		handler: handler,
		logger:  log,
		queues:  queues,
		ctx:     workerCtx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines. It is a no-op after Stop.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.stopped {
		return
	}
	w.started = true
	for i, q := range w.queues {
		w.wg.Add(1)
		go w.run(i, q)
	}
	w.logger.Debugw("Worker pool started", "workers", len(w.queues))
}

// Submit queues a job. It blocks while the target queue is full and fails
// with errors.ErrServiceUnavailable once the pool is stopping.
func (w *Worker) Submit(job Job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.stopped {
		return errors.Wrap(errors.ErrServiceUnavailable, "worker stopped")
	}

	q := w.queues[xxhash.Sum64String(job.Path)%uint64(len(w.queues))]
	select {
	case q <- job:
		return nil
	case <-w.ctx.Done():
		return errors.Wrap(errors.ErrServiceUnavailable, "worker cancelled")
	}
}

// Stop drains queued jobs and waits for the workers to exit. Jobs still
// queued after StopTimeout are cancelled.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	for _, q := range w.queues {
		close(q)
	}
	started := w.started
	w.mu.Unlock()

	defer w.cancel()
	if !started {
		return
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Debugw("Worker pool stopped")
	case <-time.After(w.cfg.StopTimeout):
		w.logger.Warnw("Worker pool stop timed out, cancelling queued jobs", "timeout", w.cfg.StopTimeout)
		w.cancel()
		<-done
	}
}

func (w *Worker) run(id int, q <-chan Job) {
	defer w.wg.Done()
	for job := range q {
		w.process(id, job)
	}
}

func (w *Worker) process(id int, job Job) {
	ctx := w.ctx
	if job.RequestID != "" {
		ctx = logger.WithRequestID(ctx, job.RequestID)
	}
	log := logger.FromContext(ctx, w.logger)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Panic while updating file",
				logger.FieldPath, job.Path,
				logger.FieldWorker, id,
				"panic", r,
			)
		}
	}()

	start := time.Now()
	out := Outcome{Job: job}
	if job.Source != nil {
		out.Result = w.cache.UpdateSource(ctx, job.Path, job.Source)
	} else {
		out.Result, out.Err = w.cache.Update(ctx, job.Path)
	}
	out.Duration = time.Since(start)

	if out.Err != nil {
		log.Warnw("File update failed",
			logger.FieldPath, job.Path,
			logger.FieldWorker, id,
			logger.FieldError, out.Err,
		)
	}
	if w.handler != nil {
		w.handler(ctx, out)
	}
}
