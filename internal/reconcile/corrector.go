package reconcile

import (
	"context"

	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/models"
)

// ClientUpdater pushes a client entry to a panel
type ClientUpdater interface {
	UpdateClient(ctx context.Context, host models.Host, inboundID int, client models.InboundClient) error
}

// Corrector applies one flow fix through the panel
type Corrector struct {
	panel  ClientUpdater
	logger *logrus.Logger
}

// NewCorrector creates a new corrector
func NewCorrector(panel ClientUpdater, logger *logrus.Logger) *Corrector {
	return &Corrector{
		panel:  panel,
		logger: logger,
	}
}

// Apply sets the required flow on the mismatched client. It reports whether
// the panel was changed; a mismatch that is already satisfied is a no-op.
func (c *Corrector) Apply(ctx context.Context, host models.Host, mismatch models.Mismatch) (bool, error) {
	if mismatch.Current == mismatch.Required {
		return false, nil
	}

	fixed := mismatch.Client.WithFlow(mismatch.Required)
	if err := c.panel.UpdateClient(ctx, host, mismatch.InboundID, fixed); err != nil {
		return false, err
	}

	c.logger.WithFields(logrus.Fields{
		"host":    host.Name,
		"inbound": mismatch.InboundID,
		"client":  mismatch.ClientID(),
		"email":   mismatch.Client.Email,
	}).Infof("Fixed flow %q -> %q", mismatch.Current, mismatch.Required)
	return true, nil
}
