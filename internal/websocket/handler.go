package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches the connection to jobID. initial, when non-nil, is written
// first so the client sees the current state without waiting for a change.
func ServeWs(hub *Hub, c *websocket.Conn, jobID string, initial []byte) {
	client := &Client{Hub: hub, Conn: c, JobID: jobID, Send: make(chan []byte, 64)}
	if initial != nil {
		client.Send <- initial
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump()
}
