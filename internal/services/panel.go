package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/config"
	"xui-sub-sync/internal/models"
	"xui-sub-sync/pkg/xrayclient"
)

// PanelService manages one panel API client per registered host
type PanelService struct {
	opts    xrayclient.Options
	logger  *logrus.Logger
	mu      sync.Mutex
	clients map[string]*xrayclient.Client
}

// NewPanelService creates a new panel service
func NewPanelService(cfg config.PanelConfig, logger *logrus.Logger) *PanelService {
	opts := xrayclient.DefaultOptions()
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.RetryCount >= 0 {
		opts.RetryCount = cfg.RetryCount
	}
	opts.InsecureTLS = cfg.InsecureTLS

	return &PanelService{
		opts:    opts,
		logger:  logger,
		clients: make(map[string]*xrayclient.Client),
	}
}

// ListInbounds gets the inbounds and their clients from the host
func (s *PanelService) ListInbounds(ctx context.Context, host models.Host) ([]models.Inbound, error) {
	return s.clientFor(host).ListInbounds(ctx)
}

// UpdateClient pushes the client entry back to its inbound on the host
func (s *PanelService) UpdateClient(ctx context.Context, host models.Host, inboundID int, client models.InboundClient) error {
	return s.clientFor(host).UpdateClient(ctx, inboundID, client.ExternalID(), client.ToDictionary())
}

// clientFor returns the cached client for the host, replacing it when the
// host's endpoint or credentials changed since it was created
func (s *PanelService) clientFor(host models.Host) *xrayclient.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[host.Name]; ok {
		current := client.Host()
		if current.URL == host.URL && current.Username == host.Username && current.Password == host.Password {
			return client
		}
		s.logger.Infof("Panel settings for %s changed, recreating client", host.Name)
		client.Logout()
	}

	client := xrayclient.NewClient(host, s.opts, s.logger)
	s.clients[host.Name] = client
	return client
}
