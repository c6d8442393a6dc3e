package helpers

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

// FormatPassReport formats a compact HTML report of one reconciliation pass
func FormatPassReport(passID string, results map[string]*models.HostResult) string {
	if len(results) == 0 {
		return "📭 <b>No Hosts</b>\n\nThe host registry is empty."
	}

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		sb     strings.Builder
		fixed  int
		failed []string
	)

	sb.WriteString("🔄 <b>XTLS sync</b>")
	if passID != "" {
		sb.WriteString(fmt.Sprintf(" <code>%s</code>", html.EscapeString(shortID(passID))))
	}
	sb.WriteString("\n\n")

	for _, name := range names {
		result := results[name]
		fixed += result.Fixed

		icon := "✅"
		switch {
		case result.Err != nil:
			icon = "❌"
			failed = append(failed, name)
		case result.Failed > 0:
			icon = "⚠️"
		}

		sb.WriteString(fmt.Sprintf("%s <b>%s</b>: fixed %d of %d", icon, html.EscapeString(name), result.Fixed, result.Inspected))
		if result.Failed > 0 {
			sb.WriteString(fmt.Sprintf(", %d failed", result.Failed))
		}
		if result.SkippedInbounds > 0 {
			sb.WriteString(fmt.Sprintf(", %d inbounds skipped", result.SkippedInbounds))
		}
		if result.Duration > 0 {
			sb.WriteString(fmt.Sprintf(" (%s)", result.Duration.Round(time.Millisecond)))
		}
		sb.WriteString("\n")

		if result.Err != nil {
			sb.WriteString(fmt.Sprintf("    <i>%s</i>: %s\n", apperrors.Kind(result.Err), html.EscapeString(result.Err.Error())))
		}
	}

	sb.WriteString(fmt.Sprintf("\n<b>Total fixed:</b> %d", fixed))
	if len(failed) > 0 {
		sb.WriteString(fmt.Sprintf("\n<b>Failed hosts:</b> %s", html.EscapeString(strings.Join(failed, ", "))))
	}

	return sb.String()
}

// shortID trims a uuid to its first group
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
