// Package links renders client share links (vless://, trojan://, vmess://) from
// a panel inbound and one of its clients.
package links

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"xui-sub-sync/internal/models"
)

var (
	// ErrUnsupportedProtocol is returned for inbounds we cannot render a link for
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	// ErrIncompleteStream is returned when security settings lack fields a client needs
	ErrIncompleteStream = errors.New("incomplete stream settings")
)

const defaultFingerprint = "chrome"

// FlowPolicy returns the flow a client of the given listener must use
type FlowPolicy interface {
	Required(protocol, network, security string) (flow string, known bool)
}

// Build renders the share link of client under inbound, reachable at address
func Build(inbound models.Inbound, client models.InboundClient, address, remark string, policy FlowPolicy) (string, error) {
	stream, err := inbound.ParseStream()
	if err != nil {
		return "", err
	}

	network := stream.NetworkOrDefault()
	security := stream.SecurityOrDefault()
	endpoint := net.JoinHostPort(address, strconv.Itoa(inbound.Port))

	switch protocol := strings.ToLower(inbound.Protocol); protocol {
	case "vless":
		if client.ID == "" {
			return "", fmt.Errorf("%w: vless client without id", ErrIncompleteStream)
		}
		query, err := streamQuery(stream, address)
		if err != nil {
			return "", err
		}
		query.Set("encryption", "none")
		if flow, _ := policy.Required(protocol, network, security); flow != "" {
			query.Set("flow", flow)
		}
		return "vless://" + url.User(client.ID).String() + "@" + endpoint + "?" + query.Encode() + "#" + url.PathEscape(remark), nil

	case "trojan":
		if client.Password == "" {
			return "", fmt.Errorf("%w: trojan client without password", ErrIncompleteStream)
		}
		query, err := streamQuery(stream, address)
		if err != nil {
			return "", err
		}
		if flow, _ := policy.Required(protocol, network, security); flow != "" {
			query.Set("flow", flow)
		}
		return "trojan://" + url.User(client.Password).String() + "@" + endpoint + "?" + query.Encode() + "#" + url.PathEscape(remark), nil

	case "vmess":
		return vmessLink(stream, client, address, inbound.Port, remark)

	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProtocol, inbound.Protocol)
	}
}

// Address extracts the hostname clients connect to from a panel URL
func Address(hostURL string) (string, error) {
	raw := strings.TrimSpace(hostURL)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid host url %q: %w", hostURL, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("invalid host url %q: no hostname", hostURL)
	}
	return parsed.Hostname(), nil
}

// Remark builds the display label of a link
func Remark(hostName string) string {
	return strings.Join(strings.Fields(hostName), " ")
}

// streamQuery encodes the transport and security parameters shared by vless and trojan
func streamQuery(stream models.StreamSettings, address string) (url.Values, error) {
	query := url.Values{}
	network := stream.NetworkOrDefault()
	security := stream.SecurityOrDefault()
	query.Set("type", network)
	query.Set("security", security)

	switch security {
	case "reality":
		reality := stream.RealitySettings
		if reality == nil || reality.Settings.PublicKey == "" || len(reality.ServerNames) == 0 || len(reality.ShortIDs) == 0 {
			return nil, fmt.Errorf("%w: reality needs publicKey, serverNames and shortIds", ErrIncompleteStream)
		}
		query.Set("pbk", reality.Settings.PublicKey)
		query.Set("fp", orDefault(reality.Settings.Fingerprint, defaultFingerprint))
		query.Set("sni", reality.ServerNames[0])
		query.Set("sid", reality.ShortIDs[0])
		query.Set("spx", orDefault(reality.Settings.SpiderX, "/"))
	case "tls":
		fingerprint, sni := defaultFingerprint, address
		if tls := stream.TLSSettings; tls != nil {
			fingerprint = orDefault(tls.Settings.Fingerprint, defaultFingerprint)
			sni = orDefault(tls.Settings.ServerName, orDefault(tls.ServerName, address))
			if len(tls.ALPN) > 0 {
				query.Set("alpn", strings.Join(tls.ALPN, ","))
			}
		}
		query.Set("sni", sni)
		query.Set("fp", fingerprint)
	}

	switch network {
	case "grpc":
		if grpc := stream.GRPCSettings; grpc != nil {
			query.Set("serviceName", grpc.ServiceName)
			if grpc.MultiMode {
				query.Set("mode", "multi")
			}
		}
	case "ws":
		if ws := stream.WSSettings; ws != nil {
			query.Set("path", orDefault(ws.Path, "/"))
			if host := orDefault(ws.Host, ws.Headers["Host"]); host != "" {
				query.Set("host", host)
			}
		}
	}

	return query, nil
}

// vmessConfig is the v2rayN share object
type vmessConfig struct {
	V    string `json:"v"`
	PS   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	FP   string `json:"fp"`
}

func vmessLink(stream models.StreamSettings, client models.InboundClient, address string, port int, remark string) (string, error) {
	if client.ID == "" {
		return "", fmt.Errorf("%w: vmess client without id", ErrIncompleteStream)
	}

	cfg := vmessConfig{
		V:    "2",
		PS:   remark,
		Add:  address,
		Port: strconv.Itoa(port),
		ID:   client.ID,
		Aid:  "0",
		Scy:  "auto",
		Net:  stream.NetworkOrDefault(),
		Type: "none",
	}

	switch cfg.Net {
	case "ws":
		if ws := stream.WSSettings; ws != nil {
			cfg.Path = orDefault(ws.Path, "/")
			cfg.Host = orDefault(ws.Host, ws.Headers["Host"])
		}
	case "grpc":
		if grpc := stream.GRPCSettings; grpc != nil {
			cfg.Path = grpc.ServiceName
		}
	}

	if stream.SecurityOrDefault() == "tls" {
		cfg.TLS = "tls"
		cfg.FP = defaultFingerprint
		cfg.SNI = address
		if tls := stream.TLSSettings; tls != nil {
			cfg.FP = orDefault(tls.Settings.Fingerprint, defaultFingerprint)
			cfg.SNI = orDefault(tls.Settings.ServerName, orDefault(tls.ServerName, address))
		}
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode vmess link: %w", err)
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(payload), nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
