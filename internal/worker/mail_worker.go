package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/examind/examind-backend/internal/config"
	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/mailer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MailWorker consumes mail_outbox_queue and delivers messages over SMTP.
// Delivery is best-effort: a failed send is requeued once, then dropped.
type MailWorker struct {
	sender *mailer.Sender
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewMailWorker creates a new MailWorker.
func NewMailWorker(sender *mailer.Sender, rdb *redis.Client, log zerolog.Logger) *MailWorker {
	return &MailWorker{
		sender: sender,
		rdb:    rdb,
		log:    logger.Component(log, "mail_worker"),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *MailWorker) Start(ctx context.Context) {
	w.log.Info().Msg("MailWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("MailWorker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *MailWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.MailOutboxQueue).Result()
	if err != nil {
		if err == redis.Nil || ctx.Err() != nil {
			return
		}
		w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
		time.Sleep(3 * time.Second)
		return
	}

	if len(result) < 2 {
		return
	}

	var msg mailer.Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
		return
	}

	if err := w.sender.Send(&msg); err != nil {
		if msg.Requeued {
			w.log.Error().Err(err).
				Str("kind", string(msg.Kind)).
				Str("to", msg.To).
				Msg("Send failed twice, dropping message")
			return
		}
		w.log.Warn().Err(err).
			Str("kind", string(msg.Kind)).
			Str("to", msg.To).
			Msg("Send failed, requeueing once")
		msg.Requeued = true
		data, _ := json.Marshal(&msg)
		if err := w.rdb.RPush(ctx, config.WorkerKey.MailOutboxQueue, data).Err(); err != nil {
			w.log.Error().Err(err).Msg("Failed to requeue mail")
		}
		return
	}

	w.log.Debug().
		Str("kind", string(msg.Kind)).
		Str("to", msg.To).
		Msg("Mail delivered")
}
