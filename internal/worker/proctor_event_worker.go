package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/examind/examind-backend/internal/config"
	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ProctorEventWorker consumes proctor_events_queue and batch-inserts
// telemetry into proctoring_logs.
type ProctorEventWorker struct {
	proctoringRepo *repository.ProctoringRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewProctorEventWorker creates a new ProctorEventWorker.
func NewProctorEventWorker(proctoringRepo *repository.ProctoringRepository, rdb *redis.Client, log zerolog.Logger) *ProctorEventWorker {
	return &ProctorEventWorker{
		proctoringRepo: proctoringRepo,
		rdb:            rdb,
		log:            logger.Component(log, "proctor_event_worker"),
	}
}

// ProctorEventPayload is the queued wire form of one telemetry event.
type ProctorEventPayload struct {
	ExamID      string          `json:"exam_id"`
	StudentID   string          `json:"student_id"`
	AttemptID   string          `json:"attempt_id,omitempty"`
	EventType   string          `json:"event_type"`
	Description string          `json:"description,omitempty"`
	Severity    string          `json:"severity,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// Start begins the worker loop. Call in a goroutine.
func (w *ProctorEventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ProctorEventWorker started")

	buffer := make([]*ProctorEventPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// Flush on size or age.
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.ProctorEventsQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty, loop back to check the flush timer
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var payload ProctorEventPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// Malformed JSON cannot be retried. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then row-by-row fallback with requeue.
func (w *ProctorEventWorker) flushSafe(ctx context.Context, batch []*ProctorEventPayload) {
	logs, bad := w.toLogs(batch)
	for _, p := range bad {
		w.log.Error().
			Str("exam_id", p.ExamID).
			Str("student_id", p.StudentID).
			Msg("Dropping telemetry event with invalid IDs")
	}
	if len(logs) == 0 {
		return
	}

	if err := w.proctoringRepo.BulkInsert(ctx, logs); err != nil {
		w.log.Warn().Err(err).Int("count", len(logs)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, logs)
	}
}

// toLogs parses queued payloads, splitting off ones with unusable IDs.
func (w *ProctorEventWorker) toLogs(batch []*ProctorEventPayload) ([]model.ProctoringLog, []*ProctorEventPayload) {
	logs := make([]model.ProctoringLog, 0, len(batch))
	var bad []*ProctorEventPayload

	for _, p := range batch {
		examID, err := uuid.Parse(p.ExamID)
		if err != nil {
			bad = append(bad, p)
			continue
		}
		studentID, err := uuid.Parse(p.StudentID)
		if err != nil {
			bad = append(bad, p)
			continue
		}

		entry := model.ProctoringLog{
			ExamID:      examID,
			StudentID:   studentID,
			EventType:   model.EventType(p.EventType),
			Description: p.Description,
			Severity:    model.Severity(p.Severity),
			Metadata:    p.Metadata,
			RecordedAt:  time.Unix(p.Timestamp, 0),
		}
		if entry.Severity == "" {
			entry.Severity = model.SeverityLow
		}
		if p.AttemptID != "" {
			if attemptID, err := uuid.Parse(p.AttemptID); err == nil {
				entry.AttemptID = &attemptID
			}
		}
		logs = append(logs, entry)
	}
	return logs, bad
}

func (w *ProctorEventWorker) fallbackInsert(ctx context.Context, logs []model.ProctoringLog) {
	requeueList := make([]model.ProctoringLog, 0)

	for i := range logs {
		entry := logs[i]
		if err := w.proctoringRepo.Create(ctx, &entry); err != nil {
			w.log.Error().Err(err).
				Str("student_id", entry.StudentID.String()).
				Msg("Insert failed, requeueing")
			requeueList = append(requeueList, logs[i])
		}
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ProctorEventWorker) requeue(ctx context.Context, logs []model.ProctoringLog) {
	pipe := w.rdb.Pipeline()
	for _, entry := range logs {
		p := ProctorEventPayload{
			ExamID:      entry.ExamID.String(),
			StudentID:   entry.StudentID.String(),
			EventType:   string(entry.EventType),
			Description: entry.Description,
			Severity:    string(entry.Severity),
			Metadata:    entry.Metadata,
			Timestamp:   entry.RecordedAt.Unix(),
		}
		if entry.AttemptID != nil {
			p.AttemptID = entry.AttemptID.String()
		}
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.ProctorEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
		return
	}
	w.log.Info().Int("count", len(logs)).Msg("Requeued failed items back to Redis")
	// Back off while the database recovers.
	time.Sleep(2 * time.Second)
}

func (w *ProctorEventWorker) shutdown(buffer []*ProctorEventPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
