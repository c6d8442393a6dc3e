package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/constants"
	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/links"
	"xui-sub-sync/internal/models"
)

// InboundLister reads inbounds from a panel
type InboundLister interface {
	ListInbounds(ctx context.Context, host models.Host) ([]models.Inbound, error)
}

// HostLookup resolves a host record by name
type HostLookup interface {
	GetHost(ctx context.Context, name string) (models.Host, error)
}

// LinkService regenerates connection strings from the live panel state
type LinkService struct {
	panel  InboundLister
	hosts  HostLookup
	policy links.FlowPolicy
	cache  *cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewLinkService creates a new link service. A non-positive ttl disables the inbound cache.
func NewLinkService(panel InboundLister, hosts HostLookup, policy links.FlowPolicy, ttl time.Duration, logger *logrus.Logger) *LinkService {
	s := &LinkService{
		panel:  panel,
		hosts:  hosts,
		policy: policy,
		ttl:    ttl,
		logger: logger,
	}
	if ttl > 0 {
		s.cache = cache.New(ttl, constants.CacheCleanupInterval*time.Minute)
	}
	return s
}

// Link builds the current connection string for a provisioned entry
func (s *LinkService) Link(ctx context.Context, entry models.ProvisionedEntry) (string, error) {
	host, err := s.hosts.GetHost(ctx, entry.HostName)
	if err != nil {
		return "", fmt.Errorf("failed to resolve host %s: %w", entry.HostName, err)
	}

	inbounds, err := s.inbounds(ctx, host)
	if err != nil {
		return "", err
	}

	inbound, client, ok := findClient(inbounds, host.InboundID, entry)
	if !ok {
		return "", fmt.Errorf("client %s not found on host %s: %w", entry.RemoteClientID, host.Name, apperrors.ErrNotFound)
	}

	address, err := links.Address(host.URL)
	if err != nil {
		return "", err
	}

	return links.Build(inbound, client, address, links.Remark(host.Name), s.policy)
}

// Invalidate drops the cached inbounds of a host
func (s *LinkService) Invalidate(hostName string) {
	if s.cache != nil {
		s.cache.Delete(hostName)
	}
}

func (s *LinkService) inbounds(ctx context.Context, host models.Host) ([]models.Inbound, error) {
	if s.cache != nil {
		if cached, found := s.cache.Get(host.Name); found {
			return cached.([]models.Inbound), nil
		}
	}

	inbounds, err := s.panel.ListInbounds(ctx, host)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(host.Name, inbounds, cache.DefaultExpiration)
		s.logger.Debugf("Cached %d inbounds of %s for %s", len(inbounds), host.Name, s.ttl)
	}
	return inbounds, nil
}

// findClient looks in the host's configured inbound first, then in the rest
func findClient(inbounds []models.Inbound, preferredID int, entry models.ProvisionedEntry) (models.Inbound, models.InboundClient, bool) {
	ordered := make([]models.Inbound, 0, len(inbounds))
	for _, inbound := range inbounds {
		if inbound.ID == preferredID {
			ordered = append([]models.Inbound{inbound}, ordered...)
			continue
		}
		ordered = append(ordered, inbound)
	}

	for _, inbound := range ordered {
		settings, err := inbound.ParseSettings()
		if err != nil {
			continue
		}
		for _, client := range settings.Clients {
			if matches(client, entry) {
				return inbound, client, true
			}
		}
	}
	return models.Inbound{}, models.InboundClient{}, false
}

func matches(client models.InboundClient, entry models.ProvisionedEntry) bool {
	if entry.RemoteClientID != "" {
		return client.ExternalID() == entry.RemoteClientID
	}
	return entry.Email != "" && client.Email == entry.Email
}
