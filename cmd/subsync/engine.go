package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"xui-sub-sync/internal/config"
	"xui-sub-sync/internal/metrics"
	"xui-sub-sync/internal/notify"
	"xui-sub-sync/internal/reconcile"
	"xui-sub-sync/internal/services"
	"xui-sub-sync/internal/storage"
	"xui-sub-sync/internal/subscription"
	"xui-sub-sync/internal/xtls"
	"xui-sub-sync/pkg/telegrambot"
)

// engine holds the wired components shared by the commands
type engine struct {
	store      *storage.Store
	metrics    *metrics.Metrics
	panel      *services.PanelService
	links      *services.LinkService
	reconciler *reconcile.Reconciler
	scheduler  *reconcile.Scheduler
	feeds      *subscription.Service
	qr         *services.QRService
}

func newEngine(cfg *config.Config, logger *logrus.Logger) (*engine, error) {
	store, err := storage.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Database.Timezone)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load timezone: %w", err)
		}
		store.SetLocation(loc)
	}

	var policyOpts []xtls.Option
	if cfg.XTLS.VisionOverTLS {
		policyOpts = append(policyOpts, xtls.WithVisionOverTLS())
	}
	policy := xtls.DefaultPolicy(policyOpts...)

	m := metrics.New()
	panel := services.NewPanelService(cfg.Panel, logger)
	linkService := services.NewLinkService(panel, store, policy, cfg.Panel.InboundCacheTTL, logger)

	reconciler := reconcile.NewReconciler(store, panel, policy, reconcile.Options{
		HostTimeout:      cfg.Sync.HostTimeout,
		MaxParallelHosts: cfg.Sync.MaxParallelHosts,
	}, m, logger)

	reporters := []reconcile.Reporter{&inboundCacheInvalidator{links: linkService}}
	if cfg.Telegram.Token != "" {
		bot, err := telegrambot.NewBot(cfg.Telegram.Token, cfg.Telegram.APIURL, logger)
		if err != nil {
			store.Close()
			return nil, err
		}
		reporters = append(reporters, notify.NewTelegramReporter(bot, cfg.Telegram.AdminIDs, logger))
		logger.Infof("Pass reports go to %d admin chats", len(cfg.Telegram.AdminIDs))
	}
	scheduler := reconcile.NewScheduler(reconciler, cfg.Sync.Interval, m, logger, reporters...)

	var live subscription.LinkSource
	if cfg.Subscription.LiveSync {
		live = linkService
	}
	assembler := subscription.NewAssembler(live, cfg.Subscription.LiveTimeout, m, logger)
	feeds := subscription.NewService(store, subscription.NewSelector(m, logger), assembler, logger)

	return &engine{
		store:      store,
		metrics:    m,
		panel:      panel,
		links:      linkService,
		reconciler: reconciler,
		scheduler:  scheduler,
		feeds:      feeds,
		qr:         services.NewQRService(logger),
	}, nil
}

func (e *engine) Close() error {
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// inboundCacheInvalidator drops cached inbound lists of hosts a pass changed
type inboundCacheInvalidator struct {
	links *services.LinkService
}

func (i *inboundCacheInvalidator) Report(_ context.Context, pass *reconcile.Pass) {
	for name, result := range pass.Results {
		if result.Fixed > 0 {
			i.links.Invalidate(name)
		}
	}
}
