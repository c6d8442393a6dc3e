package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

// Store reads the users, keys and hosts the feed is built from
type Store interface {
	UserByToken(ctx context.Context, token string) (models.User, error)
	ListUserKeys(ctx context.Context, userID int64) ([]models.ProvisionedEntry, error)
	ListHosts(ctx context.Context) ([]models.Host, error)
}

// Service serves subscription feeds
type Service struct {
	store     Store
	selector  *Selector
	assembler *Assembler
	now       func() time.Time
	logger    *logrus.Logger
}

// NewService creates a new subscription service
func NewService(store Store, selector *Selector, assembler *Assembler, logger *logrus.Logger) *Service {
	return &Service{
		store:     store,
		selector:  selector,
		assembler: assembler,
		now:       time.Now,
		logger:    logger,
	}
}

// GetFeed reduces the entries to one per host and assembles the feed. It never fails.
func (s *Service) GetFeed(ctx context.Context, entries []models.ProvisionedEntry) models.Feed {
	return s.assembler.Assemble(ctx, s.selector.Select(entries))
}

// FeedForToken builds the feed of the user owning the subscription token from
// the keys that are still active on enabled hosts
func (s *Service) FeedForToken(ctx context.Context, token string) (models.Feed, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Feed{}, apperrors.ErrUnknownToken
	}

	user, err := s.store.UserByToken(ctx, token)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.Feed{}, apperrors.ErrUnknownToken
	}
	if err != nil {
		return models.Feed{}, fmt.Errorf("failed to look up subscription token: %w", err)
	}

	keys, err := s.store.ListUserKeys(ctx, user.TelegramID)
	if err != nil {
		return models.Feed{}, fmt.Errorf("failed to load keys of user %d: %w", user.TelegramID, err)
	}

	hosts, err := s.store.ListHosts(ctx)
	if err != nil {
		return models.Feed{}, fmt.Errorf("failed to load hosts: %w", err)
	}
	enabled := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		enabled[host.Name] = host.Enabled
	}

	now := s.now()
	active := make([]models.ProvisionedEntry, 0, len(keys))
	for _, key := range keys {
		if key.IsActive(now) && enabled[key.HostName] {
			active = append(active, key)
		}
	}

	s.logger.WithField("user", user.TelegramID).Debugf("Serving %d of %d keys", len(active), len(keys))
	return s.GetFeed(ctx, active), nil
}
