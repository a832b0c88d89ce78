package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a slow client.
	writeWait = 10 * time.Second
	// idleWait is how long a stream may stay silent before the read fails.
	// Exam clients autosave and ping well inside this window.
	idleWait = 5 * time.Minute
)

// WriteTyped sends one typed response frame, bounded by writeWait.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends an ErrorResponse frame.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON decodes the next frame into v, refreshing the idle deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(idleWait))
	return conn.ReadJSON(v)
}
