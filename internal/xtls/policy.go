// Package xtls decides which flow value a client entry must carry for a given
// listener protocol, network transport and security mode.
package xtls

import (
	"strings"

	"xui-sub-sync/internal/constants"
)

// Rule returns the required flow for a (network, security) pair of one protocol.
// Network and security are already normalized to lower case with defaults applied.
type Rule func(network, security string) string

// Decision is the outcome of checking one client entry
type Decision struct {
	// Known is false when the protocol has no rule; such entries are left alone.
	Known    bool
	Drift    bool
	Required string
}

// Policy maps protocols to flow rules
type Policy struct {
	rules map[string]Rule
}

// Option configures a Policy
type Option func(*Policy)

// framedNetworks already multiplex or frame the stream; vision cannot run over them.
var framedNetworks = map[string]bool{
	"grpc":        true,
	"ws":          true,
	"httpupgrade": true,
	"xhttp":       true,
	"splithttp":   true,
	"h2":          true,
	"http":        true,
	"kcp":         true,
	"quic":        true,
}

// DefaultPolicy returns the policy for the protocols the panel serves
func DefaultPolicy(opts ...Option) *Policy {
	p := &Policy{rules: make(map[string]Rule)}
	p.Register("vless", visionOver("reality"))
	p.Register("vmess", noFlow)
	p.Register("trojan", noFlow)
	p.Register("shadowsocks", noFlow)

	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithVisionOverTLS requires vision for vless over raw TCP with plain TLS too
func WithVisionOverTLS() Option {
	return func(p *Policy) {
		p.Register("vless", visionOver("reality", "tls"))
	}
}

// WithRule registers an extra protocol rule
func WithRule(protocol string, rule Rule) Option {
	return func(p *Policy) {
		p.Register(protocol, rule)
	}
}

// Register sets the rule for a protocol, replacing any previous one
func (p *Policy) Register(protocol string, rule Rule) {
	p.rules[normalize(protocol, "")] = rule
}

// Knows reports whether the protocol has a rule
func (p *Policy) Knows(protocol string) bool {
	_, ok := p.rules[normalize(protocol, "")]
	return ok
}

// Required returns the flow a client must carry; known is false for unrecognized protocols
func (p *Policy) Required(protocol, network, security string) (flow string, known bool) {
	rule, ok := p.rules[normalize(protocol, "")]
	if !ok {
		return "", false
	}

	network = normalize(network, "tcp")
	if framedNetworks[network] {
		return "", true
	}

	return rule(network, normalize(security, "none")), true
}

// Detect checks a client's current flow against the policy
func (p *Policy) Detect(protocol, network, security, current string) Decision {
	required, known := p.Required(protocol, network, security)
	if !known {
		return Decision{}
	}
	return Decision{
		Known:    true,
		Drift:    current != required,
		Required: required,
	}
}

// Protocols returns the protocols with a registered rule
func (p *Policy) Protocols() []string {
	protocols := make([]string, 0, len(p.rules))
	for protocol := range p.rules {
		protocols = append(protocols, protocol)
	}
	return protocols
}

func visionOver(securities ...string) Rule {
	allowed := make(map[string]bool, len(securities))
	for _, s := range securities {
		allowed[s] = true
	}
	return func(network, security string) string {
		if isRawStream(network) && allowed[security] {
			return constants.FlowVision
		}
		return ""
	}
}

func noFlow(string, string) string {
	return ""
}

func isRawStream(network string) bool {
	return network == "tcp" || network == "raw"
}

func normalize(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return fallback
	}
	return value
}
