package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xui-sub-sync/internal/constants"
	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/metrics"
	"xui-sub-sync/internal/models"
	"xui-sub-sync/internal/xtls"
)

// HostRegistry supplies the panels to reconcile
type HostRegistry interface {
	ListHosts(ctx context.Context) ([]models.Host, error)
}

// Panel is the panel API surface the reconciler consumes
type Panel interface {
	ClientUpdater
	ListInbounds(ctx context.Context, host models.Host) ([]models.Inbound, error)
}

// Options bounds the work of one pass
type Options struct {
	HostTimeout      time.Duration
	MaxParallelHosts int
}

// Pass is the outcome of one reconciliation pass
type Pass struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Results   map[string]*models.HostResult
}

// Fixed returns the number of clients corrected across all hosts
func (p *Pass) Fixed() int {
	total := 0
	for _, result := range p.Results {
		total += result.Fixed
	}
	return total
}

// FailedHosts returns the sorted names of hosts that could not be reconciled
func (p *Pass) FailedHosts() []string {
	var failed []string
	for name, result := range p.Results {
		if !result.Succeeded() {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// Reconciler runs drift detection and correction across all registered hosts
type Reconciler struct {
	hosts     HostRegistry
	panel     Panel
	detector  *Detector
	corrector *Corrector
	opts      Options
	metrics   *metrics.Metrics
	logger    *logrus.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(hosts HostRegistry, panel Panel, policy *xtls.Policy, opts Options, m *metrics.Metrics, logger *logrus.Logger) *Reconciler {
	if opts.HostTimeout <= 0 {
		opts.HostTimeout = constants.DefaultHostTimeout * time.Second
	}
	if opts.MaxParallelHosts < 1 {
		opts.MaxParallelHosts = constants.DefaultMaxParallelHosts
	}

	return &Reconciler{
		hosts:     hosts,
		panel:     panel,
		detector:  NewDetector(policy, logger),
		corrector: NewCorrector(panel, logger),
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// Run performs one forced pass and returns the per-host results.
// The only error is a failure to read the host registry.
func (r *Reconciler) Run(ctx context.Context) (map[string]*models.HostResult, error) {
	pass, err := r.RunPass(ctx)
	if err != nil {
		return nil, err
	}
	return pass.Results, nil
}

// RunPass performs one pass over every registered host
func (r *Reconciler) RunPass(ctx context.Context) (*Pass, error) {
	pass := &Pass{ID: uuid.NewString(), StartedAt: time.Now()}
	logger := r.logger.WithField("pass", pass.ID)

	hosts, err := r.hosts.ListHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}

	logger.Debugf("Reconciling %d hosts", len(hosts))

	// Each host writes only its own slot
	results := make([]*models.HostResult, len(hosts))

	// A plain group: one host failing must not cancel the others
	var g errgroup.Group
	g.SetLimit(r.opts.MaxParallelHosts)
	for i, host := range hosts {
		g.Go(func() error {
			results[i] = r.reconcileHost(ctx, host, logger)
			return nil
		})
	}
	_ = g.Wait()

	pass.Results = make(map[string]*models.HostResult, len(results))
	for _, result := range results {
		pass.Results[result.Host] = result
		r.metrics.HostReconciled(result)
	}
	pass.Duration = time.Since(pass.StartedAt)

	return pass, nil
}

func (r *Reconciler) reconcileHost(ctx context.Context, host models.Host, passLogger *logrus.Entry) (result *models.HostResult) {
	start := time.Now()
	result = &models.HostResult{Host: host.Name}
	logger := passLogger.WithField("host", host.Name)

	defer func() {
		if p := recover(); p != nil {
			result.Err = fmt.Errorf("panic while reconciling %s: %v", host.Name, p)
			logger.Errorf("Reconciliation panicked: %v", p)
		}
		result.Duration = time.Since(start)
	}()

	hostCtx, cancel := context.WithTimeout(ctx, r.opts.HostTimeout)
	defer cancel()

	inbounds, err := r.panel.ListInbounds(hostCtx, host)
	if err != nil {
		result.Err = err
		logger.Errorf("Failed to list inbounds: %v", err)
		return result
	}

	for _, inbound := range inbounds {
		report, err := r.detector.Inspect(inbound)
		if errors.Is(err, apperrors.ErrUnrecognizedProtocol) {
			result.SkippedInbounds++
			logger.Debugf("Skipping inbound: %v", err)
			continue
		}
		if err != nil {
			result.Failed++
			logger.Warnf("Failed to inspect inbound %d: %v", inbound.ID, err)
			continue
		}

		result.Inspected += report.Inspected

		for _, mismatch := range report.Mismatches {
			changed, err := r.corrector.Apply(hostCtx, host, mismatch)
			if err != nil && hostCtx.Err() != nil {
				result.Err = &apperrors.HostUnreachableError{Host: host.Name, Operation: "reconcile", Err: hostCtx.Err()}
				logger.Errorf("Abandoned after %s: %v", r.opts.HostTimeout, hostCtx.Err())
				return result
			}
			if err != nil {
				result.Failed++
				logger.WithFields(logrus.Fields{
					"inbound": mismatch.InboundID,
					"client":  mismatch.ClientID(),
				}).Errorf("Failed to fix flow: %v", err)
				continue
			}
			if changed {
				result.Fixed++
				result.FixedIDs = append(result.FixedIDs, mismatch.ClientID())
			}
		}
	}

	return result
}
