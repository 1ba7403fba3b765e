package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/tradeblock/go/internal/models"
	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/rs/zerolog/log"
)

// StateProvider loads current proposal state for clients resyncing after a
// reconnect. *trade.App satisfies it.
type StateProvider interface {
	GetProposalBySlug(ctx context.Context, slug string) (*models.Proposal, error)
	RemainingWindow(p *models.Proposal) time.Duration
}

// ProposalState is the snapshot served to clients.
type ProposalState struct {
	Proposal           *models.Proposal `json:"proposal"`
	WindowRemainingSec *int             `json:"window_remaining_sec,omitempty"`
}

type StateHandler struct {
	provider StateProvider
}

func NewStateHandler(provider StateProvider) *StateHandler {
	return &StateHandler{provider: provider}
}

// HandleGetProposalState handles GET /api/trades/{slug}/state
func (h *StateHandler) HandleGetProposalState(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		http.Error(w, "proposal slug is required", http.StatusBadRequest)
		return
	}

	p, err := h.provider.GetProposalBySlug(r.Context(), slug)
	if err != nil {
		if trade.KindOf(err) == trade.KindNotFound {
			http.Error(w, "proposal not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("slug", slug).Msg("failed to get proposal state")
		http.Error(w, "failed to get proposal state", http.StatusInternalServerError)
		return
	}

	state := ProposalState{Proposal: p}
	if remaining := h.provider.RemainingWindow(p); remaining > 0 {
		secs := int(remaining.Seconds())
		state.WindowRemainingSec = &secs
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode proposal state response")
	}
}

func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/trades/{slug}/state", h.HandleGetProposalState)
}
