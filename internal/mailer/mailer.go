package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/examind/examind-backend/internal/config"
	"github.com/examind/examind-backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// MessageKind tags outbound mail payloads.
type MessageKind string

const (
	KindVerification  MessageKind = "verification"
	KindPasswordReset MessageKind = "password_reset"
	KindResult        MessageKind = "result"
	KindReminder      MessageKind = "reminder"
)

// Message is one queued outbound email. Only the fields relevant to its
// kind are set.
type Message struct {
	Kind          MessageKind `json:"kind"`
	To            string      `json:"to"`
	Name          string      `json:"name"`
	Token         string      `json:"token,omitempty"`
	ExamTitle     string      `json:"exam_title,omitempty"`
	ScheduledDate string      `json:"scheduled_date,omitempty"`
	StartTime     string      `json:"start_time,omitempty"`
	ObtainedMarks float64     `json:"obtained_marks,omitempty"`
	TotalMarks    float64     `json:"total_marks,omitempty"`
	Percentage    float64     `json:"percentage,omitempty"`
	IsPassed      bool        `json:"is_passed,omitempty"`
	Requeued      bool        `json:"requeued,omitempty"`
}

// Queue pushes outbound mail onto the Redis outbox. Enqueue is best-effort
// at every call site: a dead Redis must never fail the request that wanted
// to send mail.
type Queue struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewQueue creates a mail queue producer.
func NewQueue(rdb *redis.Client, log zerolog.Logger) *Queue {
	return &Queue{
		rdb: rdb,
		log: logger.Component(log, "mail_queue"),
	}
}

// Enqueue pushes one message onto the outbox queue.
func (q *Queue) Enqueue(ctx context.Context, msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		q.log.Error().Err(err).Str("kind", string(msg.Kind)).Msg("Marshal error")
		return
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.MailOutboxQueue, payload).Err(); err != nil {
		q.log.Error().Err(err).
			Str("kind", string(msg.Kind)).
			Str("to", msg.To).
			Msg("Failed to enqueue mail")
	}
}

// Sender renders and delivers queued messages over SMTP.
type Sender struct {
	dialer      *gomail.Dialer
	from        string
	frontendURL string
}

// NewSender creates an SMTP sender from config.
func NewSender(cfg *config.Config) *Sender {
	return &Sender{
		dialer:      gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass),
		from:        cfg.MailFrom,
		frontendURL: cfg.FrontendURL,
	}
}

// Send renders the message for its kind and delivers it.
func (s *Sender) Send(msg *Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)

	switch msg.Kind {
	case KindVerification:
		m.SetHeader("Subject", "Verify your email address")
		m.SetBody("text/html", fmt.Sprintf(
			`<p>Hi %s,</p><p>Welcome! Please verify your email address by clicking the link below:</p>
			<p><a href="%s/verify-email?token=%s">Verify Email</a></p>
			<p>The link expires in 24 hours.</p>`,
			msg.Name, s.frontendURL, msg.Token))
	case KindPasswordReset:
		m.SetHeader("Subject", "Reset your password")
		m.SetBody("text/html", fmt.Sprintf(
			`<p>Hi %s,</p><p>We received a request to reset your password:</p>
			<p><a href="%s/reset-password?token=%s">Reset Password</a></p>
			<p>The link expires in 1 hour. If you did not request this, ignore this email.</p>`,
			msg.Name, s.frontendURL, msg.Token))
	case KindResult:
		verdict := "Unfortunately, you did not pass this time."
		if msg.IsPassed {
			verdict = "Congratulations, you passed!"
		}
		m.SetHeader("Subject", fmt.Sprintf("Your result for %s", msg.ExamTitle))
		m.SetBody("text/html", fmt.Sprintf(
			`<p>Hi %s,</p><p>Your exam <b>%s</b> has been scored.</p>
			<p>Score: %.2f / %.2f (%.2f%%)</p><p>%s</p>`,
			msg.Name, msg.ExamTitle, msg.ObtainedMarks, msg.TotalMarks, msg.Percentage, verdict))
	case KindReminder:
		m.SetHeader("Subject", fmt.Sprintf("Reminder: %s", msg.ExamTitle))
		m.SetBody("text/html", fmt.Sprintf(
			`<p>Hi %s,</p><p>This is a reminder that your exam <b>%s</b> is scheduled
			for %s at %s. Good luck!</p>`,
			msg.Name, msg.ExamTitle, msg.ScheduledDate, msg.StartTime))
	default:
		return fmt.Errorf("unknown message kind: %s", msg.Kind)
	}

	return s.dialer.DialAndSend(m)
}
