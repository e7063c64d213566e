package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/tictactoe/config"
	"github.com/rs/zerolog"
)

// Dial opens the realtime channel for a session token.
func Dial(ctx context.Context, cfg *config.ClientConfig, token string, events Events, logger zerolog.Logger) (*Socket, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.RequestTimeoutDuration(),
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
	}
	conn, resp, err := dialer.DialContext(ctx, cfg.SocketURL(token), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	logger.Info().Str("host", cfg.Host).Str("port", cfg.Port).Msg("realtime connected")

	return Open(&wsConn{conn: conn, writeTimeout: cfg.WriteTimeoutDuration()}, events,
		Options{PingInterval: cfg.PingIntervalDuration()}, logger), nil
}

// wsConn wraps websocket.Conn to satisfy types.Conn with write deadlines.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (w *wsConn) WriteJSON(v any) error {
	if w.writeTimeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}
	return w.conn.WriteJSON(v)
}

func (w *wsConn) ReadJSON(v any) error { return w.conn.ReadJSON(v) }

func (w *wsConn) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return w.conn.Close()
}
