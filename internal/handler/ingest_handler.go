package handler

import (
	"encoding/json"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"
	internalWS "ai-tutor-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// IngestHandler streams ingestion progress of one job over a websocket.
type IngestHandler struct {
	ingestService service.IIngestService
	hub           *internalWS.Hub
	logger        logger.ILogger
}

func NewIngestHandler(ingestService service.IIngestService, hub *internalWS.Hub, log logger.ILogger) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		hub:           hub,
		logger:        log,
	}
}

// ServeWs checks the job belongs to the caller's licence before the upgrade,
// then sends the current progress followed by every update.
func (h *IngestHandler) ServeWs(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	identity, err := serverutils.IdentityFrom(c)
	if err != nil {
		return err
	}
	jobID := c.Params("jobId")

	current, err := h.ingestService.Progress(c.UserContext(), identity.LicenseId, jobID)
	if err != nil {
		return err
	}
	initial, err := json.Marshal(current)
	if err != nil {
		return err
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("IngestHandler", "Starting WebSocket session", map[string]interface{}{"job_id": jobID})
		internalWS.ServeWs(h.hub, conn, jobID, initial)
		h.logger.Info("IngestHandler", "WebSocket session ended", map[string]interface{}{"job_id": jobID})
	})(c)
}

// RegisterRoutes mounts the socket. Browsers pass the token as ?token=.
func (h *IngestHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	router.Get("/ws/ingest/:jobId", auth, h.ServeWs)
}
