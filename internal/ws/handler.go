// Package ws exposes auction event streams over websockets. Each connection
// watches exactly one auction and receives its envelopes in publish order.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/bidstream/go-live-auctions/internal/fanout"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browser clients connect from arbitrary origins; auth happens
		// elsewhere and the stream is read-only.
		return true
	},
}

type Handler struct {
	Hub *fanout.Hub
}

// Register mounts the stream endpoint. It must sit outside any timeout
// middleware or the connection gets cut mid-stream.
func (h *Handler) Register(r *chi.Mux) {
	r.Get("/ws/auctions/{id}", h.serve)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	auctionID := chi.URLParam(r, "id")
	if auctionID == "" {
		http.Error(w, "auction id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	sub := h.Hub.Subscribe(auctionID, 0)

	go writePump(conn, sub)
	readPump(conn, sub)
}

// writePump drains the subscription into the socket and keeps the connection
// alive with pings. It owns all writes on conn.
func writePump(conn *websocket.Conn, sub *fanout.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(env)
			if err != nil {
				log.Printf("ws: marshal envelope: %v", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; its job is noticing the disconnect and
// releasing the subscription so the hub stops buffering for us.
func readPump(conn *websocket.Conn, sub *fanout.Subscriber) {
	defer sub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read: %v", err)
			}
			return
		}
	}
}
