package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.PassCompleted(time.Second)
	m.PassSkipped()
	m.HostReconciled(&models.HostResult{Host: "a"})
	m.FeedFallback("a")
	m.FeedOmitted("a")
	m.FeedDuplicatesDropped(1)
	m.SelectorDiscards(1)
	if m.Registry() != nil {
		t.Fatalf("nil metrics returned a registry")
	}
}

func TestHostReconciled(t *testing.T) {
	m := New()
	m.HostReconciled(&models.HostResult{Host: "a", Fixed: 3, Failed: 1})
	m.HostReconciled(&models.HostResult{Host: "b", Err: &apperrors.HostUnreachableError{Host: "b", Err: errors.New("x")}})

	if got := testutil.ToFloat64(m.clientsFixed.WithLabelValues("a")); got != 3 {
		t.Fatalf("fixed=%v", got)
	}
	if got := testutil.ToFloat64(m.hostResults.WithLabelValues("a", "partial")); got != 1 {
		t.Fatalf("partial=%v", got)
	}
	if got := testutil.ToFloat64(m.hostResults.WithLabelValues("b", "unreachable")); got != 1 {
		t.Fatalf("unreachable=%v", got)
	}
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.PassCompleted(2 * time.Second)
	m.PassSkipped()
	m.FeedDuplicatesDropped(2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"subsync_passes_total 1",
		"subsync_pass_skipped_total 1",
		"subsync_feed_duplicates_dropped_total 2",
		"subsync_pass_duration_seconds_count 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
