package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Service is the trade gateway: WebSocket fan-out of relayed trade events
// plus a state endpoint for resyncing clients.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	eventConsumer     *EventConsumer
	stateHandler      *StateHandler
}

type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamConsumerConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamConsumerConfig(),
	}
}

func NewService(config Config, provider StateProvider) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig)

	eventConsumer, err := NewEventConsumer(connectionManager, config.JetStreamConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event consumer: %w", err)
	}

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		eventConsumer:     eventConsumer,
		stateHandler:      NewStateHandler(provider),
	}, nil
}

// Start runs the gateway until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting trade gateway service")

	go s.connectionManager.Start(ctx)
	go func() {
		if err := s.eventConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("trade gateway service shutting down")
	return s.eventConsumer.Stop()
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("trade gateway routes registered")
}

func (s *Service) Stats() Stats {
	return s.connectionManager.Stats()
}
