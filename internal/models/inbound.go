package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound represents a panel inbound (listener) as returned by the 3x-ui API
type Inbound struct {
	ID             int          `json:"id"`
	Up             int64        `json:"up"`
	Down           int64        `json:"down"`
	Total          int64        `json:"total"`
	Remark         string       `json:"remark"`
	Enable         bool         `json:"enable"`
	ExpiryTime     int64        `json:"expiryTime"`
	ClientStats    []ClientStat `json:"clientStats"`
	Listen         string       `json:"listen"`
	Port           int          `json:"port"`
	Protocol       string       `json:"protocol"`
	Settings       string       `json:"settings"`
	StreamSettings string       `json:"streamSettings"`
	Tag            string       `json:"tag"`
}

// ClientStat represents traffic statistics for a client
type ClientStat struct {
	ID         int    `json:"id"`
	InboundID  int    `json:"inboundId"`
	Enable     bool   `json:"enable"`
	Email      string `json:"email"`
	Up         int64  `json:"up"`
	Down       int64  `json:"down"`
	ExpiryTime int64  `json:"expiryTime"`
	Total      int64  `json:"total"`
}

// InboundSettings is the decoded settings JSON of an inbound
type InboundSettings struct {
	Clients    []InboundClient `json:"clients"`
	Decryption string          `json:"decryption,omitempty"`
}

// ParseSettings decodes the inbound settings string
func (i *Inbound) ParseSettings() (InboundSettings, error) {
	var settings InboundSettings
	if strings.TrimSpace(i.Settings) == "" {
		return settings, nil
	}
	if err := json.Unmarshal([]byte(i.Settings), &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings for inbound %d: %w", i.ID, err)
	}
	return settings, nil
}

// ParseStream decodes the inbound stream settings string
func (i *Inbound) ParseStream() (StreamSettings, error) {
	var stream StreamSettings
	if strings.TrimSpace(i.StreamSettings) == "" {
		return stream, nil
	}
	if err := json.Unmarshal([]byte(i.StreamSettings), &stream); err != nil {
		return stream, fmt.Errorf("failed to parse stream settings for inbound %d: %w", i.ID, err)
	}
	return stream, nil
}

// FindClient returns the client whose external id matches
func (s InboundSettings) FindClient(externalID string) (InboundClient, bool) {
	for _, client := range s.Clients {
		if client.ExternalID() == externalID {
			return client, true
		}
	}
	return InboundClient{}, false
}
