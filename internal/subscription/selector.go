// Package subscription turns a user's provisioned keys into a deduplicated
// connection feed.
package subscription

import (
	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/constants"
	"xui-sub-sync/internal/metrics"
	"xui-sub-sync/internal/models"
)

// Discard records an entry superseded by another entry on the same host
type Discard struct {
	Host           string
	DiscardedKeyID int64
	KeptKeyID      int64
}

// Selection holds at most one entry per host
type Selection struct {
	ByHost map[string]models.ProvisionedEntry
	// Order lists hosts by their first appearance in the input
	Order    []string
	Discards []Discard
}

// Entries returns the selected entries in host order
func (s Selection) Entries() []models.ProvisionedEntry {
	entries := make([]models.ProvisionedEntry, 0, len(s.Order))
	for _, host := range s.Order {
		entries = append(entries, s.ByHost[host])
	}
	return entries
}

// Selector keeps the latest expiring entry of every host
type Selector struct {
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewSelector creates a new key selector
func NewSelector(m *metrics.Metrics, logger *logrus.Logger) *Selector {
	return &Selector{
		metrics: m,
		logger:  logger,
	}
}

// Select reduces entries to one per host in a single pass. On equal expiry the
// entry seen first is kept.
func (s *Selector) Select(entries []models.ProvisionedEntry) Selection {
	selection := Selection{ByHost: make(map[string]models.ProvisionedEntry, len(entries))}

	for _, entry := range entries {
		kept, seen := selection.ByHost[entry.HostName]
		if !seen {
			selection.ByHost[entry.HostName] = entry
			selection.Order = append(selection.Order, entry.HostName)
			continue
		}

		discarded := entry
		if entry.ExpiresAt.After(kept.ExpiresAt) {
			discarded, kept = kept, entry
			selection.ByHost[entry.HostName] = kept
		}

		selection.Discards = append(selection.Discards, Discard{
			Host:           entry.HostName,
			DiscardedKeyID: discarded.KeyID,
			KeptKeyID:      kept.KeyID,
		})
		s.logger.WithFields(logrus.Fields{
			"host":      entry.HostName,
			"user":      entry.UserID,
			"discarded": discarded.KeyID,
			"kept":      kept.KeyID,
		}).Warnf("Duplicate key on host: keeping key expiring %s, dropping key expiring %s",
			kept.ExpiresAt.Format(constants.TimestampFormat), discarded.ExpiresAt.Format(constants.TimestampFormat))
	}

	s.metrics.SelectorDiscards(len(selection.Discards))
	return selection
}
