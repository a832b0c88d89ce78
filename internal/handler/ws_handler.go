package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/examind/examind-backend/internal/config"
	"github.com/examind/examind-backend/internal/logger"
	"github.com/examind/examind-backend/internal/middleware"
	"github.com/examind/examind-backend/internal/model"
	"github.com/examind/examind-backend/internal/service"
	"github.com/examind/examind-backend/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/examind/examind-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler handles the live attempt stream.
type WSHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, attemptService *service.AttemptService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		attemptService: attemptService,
		log:            logger.Component(log, "ws_handler"),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/student/attempts/:id/stream
// Upgrades to WebSocket for answer autosave and proctoring telemetry.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid attempt ID"})
		return
	}

	attempt, err := h.attemptService.VerifyActiveAttempt(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "no active attempt"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("student_id", claims.UserID.String()).
		Str("attempt_id", attemptID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		err := ws.ReadJSON(conn, &msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionSave:
			h.handleSave(conn, wsLog, attemptID, claims.UserID, &msg)
		case ws.ActionTelemetry:
			h.handleTelemetry(conn, wsLog, attempt, &msg)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleSave persists one answer slot through the same path as the REST
// endpoint, so status and ownership guards stay in one place.
func (h *WSHandler) handleSave(conn *websocket.Conn, wsLog zerolog.Logger, attemptID, studentID uuid.UUID, msg *ws.RequestPayload) {
	if msg.QuestionID == "" {
		ws.WriteError(conn, "question_id is required")
		return
	}
	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	req := model.SaveAnswerRequest{
		QuestionID:     questionID,
		SelectedOption: msg.SelectedOption,
		TimeTaken:      msg.TimeTaken,
	}
	if err := h.attemptService.SaveAnswer(context.Background(), attemptID, studentID, &req); err != nil {
		wsLog.Error().Err(err).Str("question_id", msg.QuestionID).Msg("Autosave failed")
		ws.WriteError(conn, "save failed")
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})
}

// handleTelemetry queues a proctoring event for the background worker.
// The frame is acknowledged as soon as it is on the queue.
func (h *WSHandler) handleTelemetry(conn *websocket.Conn, wsLog zerolog.Logger, attempt *model.Attempt, msg *ws.RequestPayload) {
	if msg.EventType == "" {
		ws.WriteError(conn, "event_type is required")
		return
	}

	payload, _ := json.Marshal(worker.ProctorEventPayload{
		ExamID:      attempt.ExamID.String(),
		StudentID:   attempt.StudentID.String(),
		AttemptID:   attempt.ID.String(),
		EventType:   msg.EventType,
		Description: msg.Description,
		Severity:    msg.Severity,
		Metadata:    msg.Metadata,
		Timestamp:   time.Now().Unix(),
	})
	if err := h.rdb.RPush(context.Background(), config.WorkerKey.ProctorEventsQueue, payload).Err(); err != nil {
		wsLog.Error().Err(err).Msg("Telemetry queue error")
		ws.WriteError(conn, "event not recorded")
		return
	}

	ws.WriteTyped(conn, ws.AckResponse{Event: ws.EventAck})
}
