package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-tutor-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const clusterChannel = "ingest_events"

// Hub fans ingestion updates out to the websocket clients watching a job.
// With Redis configured every instance relays what the others publish, so a
// client may be connected to any instance.
type Hub struct {
	// Watchers per job id
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    *redis.Client
	origin string
	logger logger.ILogger
}

type clusterMessage struct {
	Origin  string          `json:"origin"`
	JobID   string          `json:"job_id"`
	Message json.RawMessage `json:"message"`
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		origin:     uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.JobID] = append(h.clients[client.JobID], client)
			h.mu.Unlock()
			h.logger.Debug("Hub", "Client registered", map[string]interface{}{"job_id": client.JobID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.clients[client.JobID]
	for i, c := range clients {
		if c == client {
			h.clients[client.JobID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.JobID]) == 0 {
		delete(h.clients, client.JobID)
	}
}

// Send delivers msg to local watchers of jobID and relays it to the other
// instances.
func (h *Hub) Send(jobID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal message", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}

	h.deliver(jobID, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterMessage{Origin: h.origin, JobID: jobID, Message: data})
		if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
			h.logger.Warn("Hub", "Failed to relay message", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		}
	}
}

// Watchers reports how many local clients follow jobID.
func (h *Hub) Watchers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

func (h *Hub) deliver(jobID string, data []byte) {
	// sends happen under the read lock so remove cannot close a channel mid-send
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[jobID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"job_id": jobID})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload clusterMessage
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Redis message parse error", map[string]interface{}{"error": err.Error()})
			continue
		}
		if payload.Origin == h.origin {
			continue
		}
		h.deliver(payload.JobID, payload.Message)
	}
}
