package calibration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"aca-console/internal/models"

	"github.com/gorilla/websocket"
)

const closeGrace = time.Second

// WebSocketDialer opens the calibration stream at URL.
type WebSocketDialer struct {
	URL    string
	Dialer *websocket.Dialer
}

func (d WebSocketDialer) Dial(ctx context.Context) (Transport, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, d.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", d.URL, err)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

func (w *wsTransport) Send(params models.CalibrationParams) error {
	return w.conn.WriteJSON(params)
}

func (w *wsTransport) Recv() (models.CalibrationStep, error) {
	var step models.CalibrationStep

	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return step, err
	}
	if err := json.Unmarshal(data, &step); err != nil {
		return step, fmt.Errorf("%w: %v", ErrMalformedStep, err)
	}
	return step, nil
}

func (w *wsTransport) Close() error {
	w.closeOnce.Do(func() {
		w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
