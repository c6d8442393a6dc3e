package validation

import (
	"fmt"
	"net/url"
	"unicode"

	"xui-sub-sync/internal/models"
)

const maxHostNameLength = 64

// ValidateHost validates a host registry record before it is saved
func ValidateHost(host models.Host) error {
	if err := ValidateHostName(host.Name); err != nil {
		return err
	}
	if err := ValidatePanelURL(host.URL); err != nil {
		return err
	}
	if host.Username == "" {
		return fmt.Errorf("panel username is required")
	}
	if host.InboundID < 1 {
		return fmt.Errorf("inbound id must be positive")
	}
	return nil
}

// ValidateHostName validates a host name
func ValidateHostName(name string) error {
	if len(name) < 1 || len(name) > maxHostNameLength {
		return fmt.Errorf("host name must be between 1 and %d characters", maxHostNameLength)
	}

	for _, r := range name {
		if !isValidHostNameChar(r) {
			return fmt.Errorf("host name can only contain letters, digits, '_', '-' and '.'")
		}
	}

	return nil
}

// ValidatePanelURL validates a panel base URL
func ValidatePanelURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid panel URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("panel URL must use http or https")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("panel URL has no host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("panel URL cannot carry a query or fragment")
	}
	return nil
}

// isValidHostNameChar checks if a character is valid for host names
func isValidHostNameChar(r rune) bool {
	return unicode.IsLetter(r) ||
		unicode.IsDigit(r) ||
		r == '_' ||
		r == '-' ||
		r == '.'
}
