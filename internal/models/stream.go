package models

import "strings"

// StreamSettings is the decoded streamSettings JSON of an inbound
type StreamSettings struct {
	Network         string           `json:"network"`
	Security        string           `json:"security"`
	RealitySettings *RealitySettings `json:"realitySettings,omitempty"`
	TLSSettings     *TLSSettings     `json:"tlsSettings,omitempty"`
	GRPCSettings    *GRPCSettings    `json:"grpcSettings,omitempty"`
	WSSettings      *WSSettings      `json:"wsSettings,omitempty"`
}

// RealitySettings holds the Reality parameters a client link needs
type RealitySettings struct {
	ServerNames []string              `json:"serverNames"`
	ShortIDs    []string              `json:"shortIds"`
	Settings    RealityClientSettings `json:"settings"`
}

// RealityClientSettings is the client-facing half of the Reality settings
type RealityClientSettings struct {
	PublicKey   string `json:"publicKey"`
	Fingerprint string `json:"fingerprint"`
	ServerName  string `json:"serverName"`
	SpiderX     string `json:"spiderX"`
}

// TLSSettings holds the TLS parameters a client link needs
type TLSSettings struct {
	ServerName string            `json:"serverName"`
	ALPN       []string          `json:"alpn"`
	Settings   TLSClientSettings `json:"settings"`
}

// TLSClientSettings is the client-facing half of the TLS settings
type TLSClientSettings struct {
	Fingerprint string `json:"fingerprint"`
	ServerName  string `json:"serverName"`
}

// GRPCSettings holds the gRPC transport options
type GRPCSettings struct {
	ServiceName string `json:"serviceName"`
	MultiMode   bool   `json:"multiMode"`
}

// WSSettings holds the websocket transport options
type WSSettings struct {
	Path    string            `json:"path"`
	Host    string            `json:"host"`
	Headers map[string]string `json:"headers"`
}

// NetworkOrDefault returns the lower-cased network, tcp when unset
func (s StreamSettings) NetworkOrDefault() string {
	network := strings.ToLower(strings.TrimSpace(s.Network))
	if network == "" {
		return "tcp"
	}
	return network
}

// SecurityOrDefault returns the lower-cased security mode, none when unset
func (s StreamSettings) SecurityOrDefault() string {
	security := strings.ToLower(strings.TrimSpace(s.Security))
	if security == "" {
		return "none"
	}
	return security
}
