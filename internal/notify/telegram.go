// Package notify delivers reconciliation pass reports to administrators.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/helpers"
	"xui-sub-sync/internal/reconcile"
)

// Messenger sends an HTML message to a chat
type Messenger interface {
	SendHTML(chatID int64, text string) error
}

// TelegramReporter sends pass summaries to the admin chats
type TelegramReporter struct {
	messenger Messenger
	adminIDs  []int64
	logger    *logrus.Logger
}

// NewTelegramReporter creates a new reporter
func NewTelegramReporter(messenger Messenger, adminIDs []int64, logger *logrus.Logger) *TelegramReporter {
	return &TelegramReporter{
		messenger: messenger,
		adminIDs:  adminIDs,
		logger:    logger,
	}
}

// Report sends the summary when the pass fixed a client or a host failed.
// Delivery errors are logged only.
func (r *TelegramReporter) Report(ctx context.Context, pass *reconcile.Pass) {
	if pass == nil || (pass.Fixed() == 0 && len(pass.FailedHosts()) == 0) {
		return
	}

	text := helpers.FormatPassReport(pass.ID, pass.Results)
	for _, id := range r.adminIDs {
		if ctx.Err() != nil {
			r.logger.Warnf("Pass report for %s abandoned: %v", pass.ID, ctx.Err())
			return
		}
		if err := r.messenger.SendHTML(id, text); err != nil {
			r.logger.WithField("pass", pass.ID).Errorf("Failed to send pass report to admin %d: %v", id, err)
		}
	}
}
