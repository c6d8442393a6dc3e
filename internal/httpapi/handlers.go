package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	apperrors "xui-sub-sync/internal/errors"
)

type statusResponse struct {
	Started       bool               `json:"started"`
	Running       bool               `json:"running"`
	Interval      string             `json:"interval"`
	Passes        int64              `json:"passes"`
	Skipped       int64              `json:"skipped"`
	LastStartedAt *time.Time         `json:"last_started_at,omitempty"`
	LastRunAt     *time.Time         `json:"last_run_at,omitempty"`
	LastRunAge    string             `json:"last_run_age,omitempty"`
	LastPassID    string             `json:"last_pass_id,omitempty"`
	LastPassTook  string             `json:"last_pass_took,omitempty"`
	LastFixed     int                `json:"last_fixed"`
	FailedHosts   []string           `json:"failed_hosts,omitempty"`
	Hosts         map[string]hostRow `json:"hosts,omitempty"`
}

type hostRow struct {
	Status    string `json:"status"`
	Inspected int    `json:"inspected"`
	Fixed     int    `json:"fixed"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleFeed(c *gin.Context) {
	feed, err := s.feeds.FeedForToken(c.Request.Context(), c.Param("token"))
	if errors.Is(err, apperrors.ErrUnknownToken) {
		c.String(http.StatusNotFound, "Subscription not found")
		return
	}
	if err != nil {
		s.logger.Errorf("Failed to serve subscription: %v", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}

	name := s.opts.SubscriptionName
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.txt"`, name))
	c.Header("Profile-Title", name)
	c.Header("Profile-Update-Interval", strconv.Itoa(s.opts.UpdateIntervalHours))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(feed.Encoded()))
}

func (s *Server) handleQR(c *gin.Context) {
	token := c.Param("token")
	if s.opts.PublicURL == "" || s.qr == nil {
		c.String(http.StatusNotFound, "Public subscription URL is not configured")
		return
	}

	png, err := s.qr.GenerateQR(s.opts.PublicURL + "/sub/" + token)
	if err != nil {
		s.logger.Errorf("Failed to generate QR code: %v", err)
		c.String(http.StatusInternalServerError, "Internal Server Error")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handleTrigger(c *gin.Context) {
	if s.sync == nil || !s.sync.Status().Started {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not running"})
		return
	}
	if !s.sync.Trigger() {
		c.JSON(http.StatusConflict, gin.H{"error": apperrors.ErrPassInProgress.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.sync == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler is not configured"})
		return
	}

	st := s.sync.Status()
	resp := statusResponse{
		Started:  st.Started,
		Running:  st.Running,
		Interval: st.Interval.String(),
		Passes:   st.Passes,
		Skipped:  st.Skipped,
	}
	if !st.LastRunAt.IsZero() {
		lastRun := st.LastRunAt
		resp.LastRunAt = &lastRun
		resp.LastRunAge = humanize.Time(lastRun)
	}
	if !st.LastStartedAt.IsZero() {
		lastStarted := st.LastStartedAt
		resp.LastStartedAt = &lastStarted
	}
	if pass := st.LastPass; pass != nil {
		resp.LastPassID = pass.ID
		resp.LastFixed = pass.Fixed()
		resp.FailedHosts = pass.FailedHosts()
		resp.LastPassTook = pass.Duration.Round(time.Millisecond).String()
		resp.Hosts = make(map[string]hostRow, len(pass.Results))
		for name, result := range pass.Results {
			row := hostRow{
				Status:    result.Status(),
				Inspected: result.Inspected,
				Fixed:     result.Fixed,
				Failed:    result.Failed,
			}
			if result.Err != nil {
				row.Error = result.Err.Error()
			}
			resp.Hosts[name] = row
		}
	}

	c.JSON(http.StatusOK, resp)
}
