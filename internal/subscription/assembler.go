package subscription

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xui-sub-sync/internal/constants"
	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/metrics"
	"xui-sub-sync/internal/models"
)

// LinkSource regenerates a connection string from the live panel
type LinkSource interface {
	Link(ctx context.Context, entry models.ProvisionedEntry) (string, error)
}

// Assembler builds feeds from selected entries
type Assembler struct {
	live    LinkSource
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// NewAssembler creates a new assembler. A nil live source serves cached lines only.
func NewAssembler(live LinkSource, timeout time.Duration, m *metrics.Metrics, logger *logrus.Logger) *Assembler {
	if timeout <= 0 {
		timeout = constants.DefaultLiveTimeout * time.Second
	}
	return &Assembler{
		live:    live,
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

// Assemble returns one line per selected host in selection order, without
// exact duplicates. Hosts with neither a live nor a cached line are left out.
func (a *Assembler) Assemble(ctx context.Context, selection Selection) models.Feed {
	entries := selection.Entries()
	lines := make([]string, len(entries))

	var g errgroup.Group
	for i, entry := range entries {
		g.Go(func() error {
			line, err := a.line(ctx, entry)
			if err != nil {
				a.metrics.FeedOmitted(entry.HostName)
				a.logger.WithFields(logrus.Fields{
					"host": entry.HostName,
					"key":  entry.KeyID,
				}).Warnf("Omitting host from feed: %v", err)
				return nil
			}
			lines[i] = line
			return nil
		})
	}
	_ = g.Wait()

	feed := models.Feed{Lines: make([]string, 0, len(lines))}
	seen := make(map[[sha256.Size]byte]struct{}, len(lines))
	dropped := 0
	for _, line := range lines {
		if line == "" {
			continue
		}
		sum := sha256.Sum256([]byte(line))
		if _, dup := seen[sum]; dup {
			dropped++
			continue
		}
		seen[sum] = struct{}{}
		feed.Lines = append(feed.Lines, line)
	}

	if dropped > 0 {
		a.metrics.FeedDuplicatesDropped(dropped)
		a.logger.Warnf("Dropped %d duplicate lines from feed", dropped)
	}

	return feed
}

// line prefers the live panel and falls back to the cached string
func (a *Assembler) line(ctx context.Context, entry models.ProvisionedEntry) (string, error) {
	if a.live != nil {
		line, err := a.liveLine(ctx, entry)
		if err == nil {
			return line, nil
		}

		a.metrics.FeedFallback(entry.HostName)
		a.logger.WithFields(logrus.Fields{
			"host": entry.HostName,
			"key":  entry.KeyID,
		}).Warnf("Live link failed, using cached connection string: %v", err)
	}

	cached := strings.TrimSpace(entry.ConnectionString)
	if cached == "" {
		return "", apperrors.ErrCacheMiss
	}
	if err := validLine(cached); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrCacheMiss, err)
	}
	return cached, nil
}

// liveLine asks the live source for a line, turning a panic into an error
func (a *Assembler) liveLine(ctx context.Context, entry models.ProvisionedEntry) (line string, err error) {
	defer func() {
		if p := recover(); p != nil {
			line, err = "", fmt.Errorf("live link panicked: %v", p)
		}
	}()

	liveCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	line, err = a.live.Link(liveCtx, entry)
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	if err := validLine(line); err != nil {
		return "", err
	}
	return line, nil
}

// validLine rejects anything that is not a single scheme://... line
func validLine(line string) error {
	if line == "" {
		return fmt.Errorf("empty line")
	}
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("line spans multiple lines")
	}
	if i := strings.Index(line, "://"); i <= 0 {
		return fmt.Errorf("line has no scheme")
	}
	return nil
}
