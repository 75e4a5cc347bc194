package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"introchat/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 8 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origin allowlisting happens in the auth gateway before upgrade
		return true
	},
}

// inboundFrame is the only client-to-server frame the socket accepts.
// Everything else flows through the HTTP API; the socket exists for
// receiving events and for the lossy typing channel.
type inboundFrame struct {
	Type string `json:"type"`
}

// ServeThread upgrades the request and streams thread and typing events
// for threadID to the client until either side disconnects. The caller
// must have verified userID is a participant.
func ServeThread(b Broker, w http.ResponseWriter, r *http.Request, threadID, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws_upgrade_failed", "thread", threadID, "error", err)
		return
	}
	events, cancelEvents := b.Subscribe(ThreadTopic(threadID))
	typing, cancelTyping := b.Subscribe(TypingTopic(threadID))
	done := make(chan struct{})

	go func() {
		defer func() {
			cancelEvents()
			cancelTyping()
			_ = conn.Close()
		}()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if !writeEvent(conn, e) {
					return
				}
			case e, ok := <-typing:
				if !ok {
					return
				}
				// never echo a user's own typing back to them
				if e.Sender == userID {
					continue
				}
				if !writeEvent(conn, e) {
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// read pump: accepts typing frames only and republishes them on the
	// ephemeral topic. The signal is advisory and lossy; receivers clear
	// it after a silence window themselves.
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(done)
			return
		}
		var f inboundFrame
		if json.Unmarshal(data, &f) != nil || f.Type != EventTyping {
			continue
		}
		b.Publish(TypingTopic(threadID), Event{
			Type:   EventTyping,
			Thread: threadID,
			Sender: userID,
			TS:     time.Now().UTC().UnixNano(),
		})
	}
}

func writeEvent(conn *websocket.Conn, e Event) bool {
	payload, err := json.Marshal(e)
	if err != nil {
		return true
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, payload) == nil
}
