// Package historian drains the Redis action queue into Postgres and marks
// games abandoned once their actions stop arriving.
package historian

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/sirupsen/logrus"
)

// Source yields queued action records. cache.Queue implements it.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*cache.GameActionRecord, error)
}

// Store persists action batches. DBStore is the Postgres implementation.
type Store interface {
	InsertGameActions(ctx context.Context, batch []cache.GameActionRecord) error
	MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error)
}

// DBStore writes through the shared database pool.
type DBStore struct{}

func (DBStore) InsertGameActions(ctx context.Context, batch []cache.GameActionRecord) error {
	return database.InsertGameActions(ctx, batch)
}

func (DBStore) MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) (bool, error) {
	return database.MarkGameAbandoned(ctx, gameID)
}

// Options tunes a Service. Zero values take the defaults below.
type Options struct {
	BatchSize  int           // flush once this many records are pending
	FlushDelay time.Duration // flush partial batches this often
	Inactivity time.Duration // a game idle this long is abandoned
	SweepEvery time.Duration // how often idle games are checked
	PopTimeout time.Duration // BLPop wait; bounds shutdown latency
	Logger     logrus.FieldLogger
}

const (
	defaultBatchSize  = 20
	defaultFlushDelay = 500 * time.Millisecond
	defaultInactivity = 10 * time.Minute
	defaultSweepEvery = time.Minute
	defaultPopTimeout = 3 * time.Second

	// pending records kept across failed flushes, per batch slot
	retryFactor = 10
)

// Service batches records from a Source into a Store.
type Service struct {
	src   Source
	store Store
	opts  Options
	log   logrus.FieldLogger

	mu           sync.Mutex
	batch        []cache.GameActionRecord
	lastFlush    time.Time
	lastActivity map[uuid.UUID]time.Time
}

func NewService(src Source, store Store, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = defaultFlushDelay
	}
	if opts.Inactivity <= 0 {
		opts.Inactivity = defaultInactivity
	}
	if opts.SweepEvery <= 0 {
		opts.SweepEvery = defaultSweepEvery
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = defaultPopTimeout
	}
	logger := opts.Logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Service{
		src:          src,
		store:        store,
		opts:         opts,
		log:          logger,
		batch:        make([]cache.GameActionRecord, 0, opts.BatchSize),
		lastFlush:    time.Now(),
		lastActivity: make(map[uuid.UUID]time.Time),
	}
}

// Run consumes until ctx is cancelled, then flushes what is pending.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("historian started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.sweepLoop(ctx)
	}()

	popWait := s.opts.PopTimeout
	if s.opts.FlushDelay < popWait {
		popWait = s.opts.FlushDelay
	}
	for ctx.Err() == nil {
		rec, err := s.src.Pop(ctx, popWait)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			s.log.WithError(err).Error("failed to pop action")
			time.Sleep(popWait)
			continue
		}
		if rec != nil {
			s.add(*rec, time.Now())
		}
		if s.due(time.Now()) {
			s.Flush(ctx)
		}
	}

	wg.Wait()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Flush(flushCtx)
	s.log.Info("historian stopped")
}

// add queues rec and records activity for its game. A game_end record
// ends tracking so the game is never marked abandoned.
func (s *Service) add(rec cache.GameActionRecord, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = append(s.batch, rec)
	if database.IsTerminalAction(rec.ActionType) {
		delete(s.lastActivity, rec.GameID)
	} else {
		s.lastActivity[rec.GameID] = now
	}
}

func (s *Service) due(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.batch) == 0 {
		return false
	}
	return len(s.batch) >= s.opts.BatchSize || now.Sub(s.lastFlush) >= s.opts.FlushDelay
}

// Flush writes every pending record in one transaction. On failure the
// records stay pending for the next flush, up to a bound.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	pending := s.batch
	s.batch = make([]cache.GameActionRecord, 0, s.opts.BatchSize)
	s.lastFlush = time.Now()
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	if err := s.store.InsertGameActions(ctx, pending); err != nil {
		s.log.WithError(err).WithField("count", len(pending)).Error("failed to flush actions")
		s.requeue(pending)
		return
	}
	s.log.WithField("count", len(pending)).Debug("flushed actions")
}

func (s *Service) requeue(failed []cache.GameActionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := append(failed, s.batch...)
	if limit := s.opts.BatchSize * retryFactor; len(merged) > limit {
		s.log.WithField("dropped", len(merged)-limit).Warn("dropping oldest actions after repeated flush failures")
		merged = merged[len(merged)-limit:]
	}
	s.batch = merged
}

func (s *Service) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(ctx, now)
		}
	}
}

// Sweep marks every game idle since before now-Inactivity as abandoned.
func (s *Service) Sweep(ctx context.Context, now time.Time) {
	s.mu.Lock()
	var idle []uuid.UUID
	for id, last := range s.lastActivity {
		if now.Sub(last) > s.opts.Inactivity {
			idle = append(idle, id)
			delete(s.lastActivity, id)
		}
	}
	s.mu.Unlock()

	for _, id := range idle {
		changed, err := s.store.MarkGameAbandoned(ctx, id)
		if err != nil {
			s.log.WithError(err).WithField("game_id", id).Error("failed to mark game abandoned")
			continue
		}
		if changed {
			s.log.WithField("game_id", id).Info("game marked abandoned")
		}
	}
}

// Tracked is the number of games with recent activity.
func (s *Service) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastActivity)
}
