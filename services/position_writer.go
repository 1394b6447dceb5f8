package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenwave/config"
	"greenwave/models"
)

// PositionStore persists ambulance positions
type PositionStore interface {
	WritePositions(ctx context.Context, fixes []models.PositionFix) error
}

// PositionWriterService batches GPS fixes and writes the latest fix per ambulance
type PositionWriterService struct {
	store        PositionStore
	logger       *zap.Logger
	buffer       []models.PositionFix
	bufferMutex  sync.Mutex
	flushTimer   *time.Timer
	maxBatchSize int
	batchTimeout time.Duration
	retryBackoff time.Duration
	shutdownChan chan bool
}

// NewPositionWriterService creates a new position writer
func NewPositionWriterService(cfg *config.Config, store PositionStore, logger *zap.Logger) *PositionWriterService {
	return &PositionWriterService{
		store:        store,
		logger:       logger,
		buffer:       make([]models.PositionFix, 0, cfg.PositionBatchSize),
		maxBatchSize: cfg.PositionBatchSize,
		batchTimeout: cfg.PositionBatchTimeout,
		retryBackoff: time.Second,
		shutdownChan: make(chan bool, 1),
	}
}

// Start consumes fixes until ctx is cancelled or the channel closes, flushing on size and on timeout
func (pw *PositionWriterService) Start(ctx context.Context, fixes <-chan models.PositionFix) {
	pw.logger.Info("Starting position writer service",
		zap.Int("max_batch_size", pw.maxBatchSize),
		zap.Duration("batch_timeout", pw.batchTimeout))

	pw.flushTimer = time.NewTimer(pw.batchTimeout)
	defer pw.flushTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			pw.logger.Info("Position writer received shutdown signal")
			// the parent context is gone; the final flush gets its own deadline
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			pw.flushBuffer(flushCtx)
			cancel()
			pw.shutdownChan <- true
			return

		case fix, ok := <-fixes:
			if !ok {
				pw.logger.Warn("Position channel closed")
				pw.flushBuffer(ctx)
				pw.shutdownChan <- true
				return
			}

			pw.bufferMutex.Lock()
			pw.buffer = append(pw.buffer, fix)
			currentSize := len(pw.buffer)
			pw.bufferMutex.Unlock()

			pw.logger.Debug("Buffered position fix",
				zap.String("ambulance_id", fix.AmbulanceID),
				zap.Int("buffer_size", currentSize))

			if currentSize >= pw.maxBatchSize {
				pw.logger.Debug("Buffer full, flushing positions", zap.Int("buffer_size", currentSize))

				if !pw.flushTimer.Stop() {
					select {
					case <-pw.flushTimer.C:
					default:
					}
				}

				pw.flushBuffer(ctx)
				pw.flushTimer.Reset(pw.batchTimeout)
			}

		case <-pw.flushTimer.C:
			if pw.GetBufferSize() > 0 {
				pw.flushBuffer(ctx)
			}
			pw.flushTimer.Reset(pw.batchTimeout)
		}
	}
}

// latestPerAmbulance keeps the newest fix of each unit in first-seen order
func latestPerAmbulance(batch []models.PositionFix) []models.PositionFix {
	index := make(map[string]int, len(batch))
	out := make([]models.PositionFix, 0, len(batch))
	for _, fix := range batch {
		i, seen := index[fix.AmbulanceID]
		if !seen {
			index[fix.AmbulanceID] = len(out)
			out = append(out, fix)
			continue
		}
		if !fix.Timestamp.Before(out[i].Timestamp) {
			out[i] = fix
		}
	}
	return out
}

// flushBuffer writes the current buffer and clears it
func (pw *PositionWriterService) flushBuffer(ctx context.Context) {
	pw.bufferMutex.Lock()
	if len(pw.buffer) == 0 {
		pw.bufferMutex.Unlock()
		return
	}
	batch := latestPerAmbulance(pw.buffer)
	received := len(pw.buffer)
	pw.buffer = pw.buffer[:0]
	pw.bufferMutex.Unlock()

	maxRetries := 3
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = pw.store.WritePositions(ctx, batch)
		if err == nil {
			pw.logger.Info("Flushed ambulance positions",
				zap.Int("fixes_received", received),
				zap.Int("ambulances", len(batch)))
			return
		}

		pw.logger.Error("Failed to flush positions",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Int("batch_size", len(batch)),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * pw.retryBackoff)
		}
	}

	pw.logger.Error("Failed to flush positions after all retries, fixes dropped",
		zap.Int("batch_size", len(batch)),
		zap.Error(err))
}

// WaitForShutdown waits for the writer to finish its final flush
func (pw *PositionWriterService) WaitForShutdown(timeout time.Duration) bool {
	select {
	case <-pw.shutdownChan:
		return true
	case <-time.After(timeout):
		return false
	}
}

// GetBufferSize returns the number of buffered fixes
func (pw *PositionWriterService) GetBufferSize() int {
	pw.bufferMutex.Lock()
	defer pw.bufferMutex.Unlock()
	return len(pw.buffer)
}
