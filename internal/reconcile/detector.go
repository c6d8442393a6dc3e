package reconcile

import (
	"fmt"

	"github.com/sirupsen/logrus"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
	"xui-sub-sync/internal/xtls"
)

// InboundReport is the drift found on one inbound
type InboundReport struct {
	InboundID  int
	Protocol   string
	Network    string
	Security   string
	Inspected  int
	Mismatches []models.Mismatch
}

// Detector compares client flows against the transport policy
type Detector struct {
	policy *xtls.Policy
	logger *logrus.Logger
}

// NewDetector creates a new drift detector
func NewDetector(policy *xtls.Policy, logger *logrus.Logger) *Detector {
	return &Detector{
		policy: policy,
		logger: logger,
	}
}

// Inspect checks every client of the inbound in panel order.
// Inbounds of a protocol the policy has no rule for return ErrUnrecognizedProtocol.
func (d *Detector) Inspect(inbound models.Inbound) (InboundReport, error) {
	report := InboundReport{InboundID: inbound.ID, Protocol: inbound.Protocol}

	if !d.policy.Knows(inbound.Protocol) {
		return report, fmt.Errorf("inbound %d (%s): %w", inbound.ID, inbound.Protocol, apperrors.ErrUnrecognizedProtocol)
	}

	stream, err := inbound.ParseStream()
	if err != nil {
		return report, err
	}
	settings, err := inbound.ParseSettings()
	if err != nil {
		return report, err
	}

	report.Network = stream.NetworkOrDefault()
	report.Security = stream.SecurityOrDefault()

	for _, client := range settings.Clients {
		report.Inspected++
		decision := d.policy.Detect(inbound.Protocol, report.Network, report.Security, client.Flow)
		if !decision.Drift {
			continue
		}
		report.Mismatches = append(report.Mismatches, models.Mismatch{
			InboundID: inbound.ID,
			Client:    client,
			Current:   client.Flow,
			Required:  decision.Required,
		})
	}

	if len(report.Mismatches) > 0 {
		d.logger.WithFields(logrus.Fields{
			"inbound":  inbound.ID,
			"network":  report.Network,
			"security": report.Security,
		}).Debugf("Found %d of %d clients with wrong flow", len(report.Mismatches), report.Inspected)
	}

	return report, nil
}
