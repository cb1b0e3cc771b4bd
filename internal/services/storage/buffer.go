package storage

import (
	"sync"
	"time"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
	"crowdwatch/internal/repository"
)

// BufferService batches telemetry samples in memory and flushes them
// to the repository on a ticker, so persistence never blocks the live
// broadcast path. A flush failure is logged and the batch dropped;
// telemetry storage is non-critical by contract.
type BufferService struct {
	repo        repository.TelemetryRepository
	samples     []models.TelemetrySample
	bufferLimit int
	logger      *logger.Logger
	mu          sync.Mutex
}

// NewBufferService creates a telemetry buffer flushing into repo.
func NewBufferService(repo repository.TelemetryRepository, bufferLimit int, logger *logger.Logger) *BufferService {
	return &BufferService{
		repo:        repo,
		bufferLimit: bufferLimit,
		samples:     make([]models.TelemetrySample, 0, bufferLimit),
		logger:      logger,
	}
}

// Run flushes the buffer every flushInterval seconds; start it once on
// its own goroutine.
func (s *BufferService) Run(flushInterval int) {
	ticker := time.NewTicker(time.Duration(flushInterval) * time.Second)

	defer ticker.Stop()
	for {
		<-ticker.C
		s.Flush()
	}
}

// Add queues one sample. When the buffer is full the oldest batch is
// flushed inline rather than dropping the sample.
func (s *BufferService) Add(sample models.TelemetrySample) {
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	full := len(s.samples) >= s.bufferLimit
	s.mu.Unlock()

	if full {
		s.Flush()
	}
}

// Flush writes the buffered samples in one batch and clears the
// buffer.
func (s *BufferService) Flush() {
	s.mu.Lock()
	if len(s.samples) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.samples
	s.samples = make([]models.TelemetrySample, 0, s.bufferLimit)
	s.mu.Unlock()

	if err := s.repo.InsertBatch(batch); err != nil {
		s.logger.Error("Error flushing %d telemetry sample(s): %v", len(batch), err)
		return
	}
}

// Pending returns the number of buffered samples.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}
