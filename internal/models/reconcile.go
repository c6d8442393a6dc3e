package models

import (
	"time"

	apperrors "xui-sub-sync/internal/errors"
)

// Mismatch describes one client entry whose flow differs from the policy
type Mismatch struct {
	InboundID int
	Client    InboundClient
	Current   string
	Required  string
}

// ClientID returns the panel id used to address the client in updates
func (m *Mismatch) ClientID() string {
	return m.Client.ExternalID()
}

// HostResult is the outcome of one reconciliation pass for one host
type HostResult struct {
	Host            string
	Inspected       int
	Fixed           int
	FixedIDs        []string
	Failed          int
	SkippedInbounds int
	Err             error
	Duration        time.Duration
}

// Status returns a short label for logs and reports
func (r *HostResult) Status() string {
	switch {
	case r.Err != nil && apperrors.IsAuth(r.Err):
		return "auth_error"
	case r.Err != nil && apperrors.IsUnreachable(r.Err):
		return "unreachable"
	case r.Err != nil:
		return "error"
	case r.Failed > 0:
		return "partial"
	default:
		return "success"
	}
}

// Succeeded reports whether the host was reached and listed
func (r *HostResult) Succeeded() bool {
	return r.Err == nil
}
