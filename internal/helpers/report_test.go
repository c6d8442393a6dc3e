package helpers

import (
	"errors"
	"strings"
	"testing"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

func TestFormatPassReport(t *testing.T) {
	results := map[string]*models.HostResult{
		"nl-1": {Host: "nl-1", Err: &apperrors.AuthError{Host: "nl-1", Status: 401, Message: "bad <creds>"}},
		"de-1": {Host: "de-1", Inspected: 5, Fixed: 2},
		"fi-1": {Host: "fi-1", Inspected: 3, Fixed: 1, Failed: 1, SkippedInbounds: 1},
	}

	report := FormatPassReport("3f2a9c1e-0000-4000-8000-000000000000", results)

	for _, want := range []string{
		"<code>3f2a9c1e</code>",
		"✅ <b>de-1</b>: fixed 2 of 5",
		"⚠️ <b>fi-1</b>: fixed 1 of 3, 1 failed, 1 inbounds skipped",
		"❌ <b>nl-1</b>",
		"<i>auth_error</i>",
		"bad &lt;creds&gt;",
		"<b>Total fixed:</b> 3",
		"<b>Failed hosts:</b> nl-1",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}

	if de, fi := strings.Index(report, "de-1"), strings.Index(report, "fi-1"); de > fi {
		t.Fatalf("hosts not sorted:\n%s", report)
	}
}

func TestFormatPassReport_NoFailures(t *testing.T) {
	report := FormatPassReport("", map[string]*models.HostResult{
		"de-1": {Host: "de-1", Inspected: 1},
	})
	if strings.Contains(report, "Failed hosts") || strings.Contains(report, "<code>") {
		t.Fatalf("unexpected section:\n%s", report)
	}

	unreachable := FormatPassReport("p", map[string]*models.HostResult{
		"x": {Host: "x", Err: &apperrors.HostUnreachableError{Host: "x", Operation: "list inbounds", Err: errors.New("i/o timeout")}},
	})
	if !strings.Contains(unreachable, "<i>unreachable</i>") {
		t.Fatalf("report=%s", unreachable)
	}
}

func TestFormatPassReport_Empty(t *testing.T) {
	if report := FormatPassReport("p", nil); !strings.Contains(report, "No Hosts") {
		t.Fatalf("report=%s", report)
	}
}
