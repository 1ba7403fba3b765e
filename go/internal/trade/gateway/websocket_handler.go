package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler serves the trade event WebSocket endpoints.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleTradeConnection subscribes a client to the trades of one franchise.
// Without franchise_id the client receives the whole league's trades.
func (h *WebSocketHandler) HandleTradeConnection(w http.ResponseWriter, r *http.Request) {
	franchiseID := LeagueFeed
	if raw := r.URL.Query().Get("franchise_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid franchise_id format", http.StatusBadRequest)
			return
		}
		franchiseID = id
	}

	personID := r.URL.Query().Get("person_id")
	if personID == "" {
		personID = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, personID, franchiseID); err != nil {
		// the upgrader has already written the HTTP error
		log.Error().
			Err(err).
			Str("franchise_id", franchiseID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/trades", h.HandleTradeConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
