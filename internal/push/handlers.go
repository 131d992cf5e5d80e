package push

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const keepaliveInterval = 30 * time.Second

// RegisterHandlers registers the SSE and WebSocket endpoints
func RegisterHandlers(mux *http.ServeMux, mgr Manager, logger zerolog.Logger) {
	mux.HandleFunc("GET /events", handleSSE(mgr, logger))
	mux.HandleFunc("GET /ws", handleWebSocket(mgr, logger))
}

func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-Id"); id != "" {
		return id
	}
	if id := r.URL.Query().Get("client"); id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d", r.RemoteAddr, time.Now().UnixNano())
}

func handleSSE(mgr Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id := clientID(r)
		messages := mgr.AddClient(id)
		defer mgr.RemoveClient(id, messages)

		hello := Message{Type: EventConnected, Data: map[string]any{"client_id": id}, Timestamp: time.Now()}
		if err := WriteSSE(w, hello); err != nil {
			logger.Warn().Err(err).Str("client", id).Msg("failed to send initial SSE message")
			return
		}
		flusher.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if err := WriteSSE(w, msg); err != nil {
					logger.Warn().Err(err).Str("client", id).Msg("failed to send SSE message")
					return
				}
				flusher.Flush()
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// WriteSSE writes msg in event-stream format.
func WriteSSE(w http.ResponseWriter, msg Message) error {
	data := []byte("{}")
	if msg.Data != nil {
		var err error
		data, err = json.Marshal(msg.Data)
		if err != nil {
			return fmt.Errorf("error marshaling SSE data: %w", err)
		}
	}
	if msg.ID != 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", msg.ID); err != nil {
			return err
		}
	}
	if msg.Type != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", msg.Type); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func handleWebSocket(mgr Manager, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		id := clientID(r)
		messages := mgr.AddClient(id)
		defer mgr.RemoveClient(id, messages)

		// Reads only detect the close; browsers send nothing else.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		hello := Message{Type: EventConnected, Data: map[string]any{"client_id": id}, Timestamp: time.Now()}
		if err := conn.WriteJSON(hello); err != nil {
			return
		}

		ping := time.NewTicker(keepaliveInterval)
		defer ping.Stop()

		for {
			select {
			case <-closed:
				return
			case msg, ok := <-messages:
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					logger.Warn().Err(err).Str("client", id).Msg("failed to send websocket message")
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}
}
