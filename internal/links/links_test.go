package links

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"xui-sub-sync/internal/constants"
	"xui-sub-sync/internal/models"
	"xui-sub-sync/internal/xtls"
)

const realityStream = `{"network":"tcp","security":"reality","realitySettings":{"serverNames":["www.google.com"],"shortIds":["ab12"],"settings":{"publicKey":"PBK","fingerprint":"firefox","spiderX":""}}}`

func TestBuild_VLESSReality(t *testing.T) {
	inbound := models.Inbound{ID: 1, Protocol: "vless", Port: 443, StreamSettings: realityStream}
	client := models.InboundClient{ID: "uuid-1", Email: "a@x"}

	link, err := Build(inbound, client, "de.example.com", "Germany 1", xtls.DefaultPolicy())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse %q: %v", link, err)
	}
	if u.Scheme != "vless" || u.User.Username() != "uuid-1" || u.Host != "de.example.com:443" {
		t.Fatalf("link=%s", link)
	}
	q := u.Query()
	want := map[string]string{
		"type": "tcp", "security": "reality", "encryption": "none",
		"pbk": "PBK", "fp": "firefox", "sni": "www.google.com", "sid": "ab12", "spx": "/",
		"flow": constants.FlowVision,
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("%s=%q, want=%q (link=%s)", k, q.Get(k), v, link)
		}
	}
	if u.Fragment != "Germany 1" {
		t.Fatalf("fragment=%q", u.Fragment)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	inbound := models.Inbound{ID: 1, Protocol: "vless", Port: 443, StreamSettings: realityStream}
	client := models.InboundClient{ID: "uuid-1"}

	first, err := Build(inbound, client, "h", "r", xtls.DefaultPolicy())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Build(inbound, client, "h", "r", xtls.DefaultPolicy())
		if again != first {
			t.Fatalf("run %d: %q != %q", i, again, first)
		}
	}
}

func TestBuild_GRPCHasNoFlow(t *testing.T) {
	inbound := models.Inbound{
		Protocol:       "vless",
		Port:           8443,
		StreamSettings: `{"network":"grpc","security":"tls","tlsSettings":{"serverName":"cdn.example.com"},"grpcSettings":{"serviceName":"svc","multiMode":true}}`,
	}

	link, err := Build(inbound, models.InboundClient{ID: "u"}, "1.2.3.4", "x", xtls.DefaultPolicy())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	u, _ := url.Parse(link)
	q := u.Query()
	if q.Has("flow") {
		t.Fatalf("grpc link carries flow: %s", link)
	}
	if q.Get("serviceName") != "svc" || q.Get("mode") != "multi" || q.Get("sni") != "cdn.example.com" || q.Get("fp") != "chrome" {
		t.Fatalf("link=%s", link)
	}
}

func TestBuild_RealityMissingKey(t *testing.T) {
	inbound := models.Inbound{Protocol: "vless", Port: 443, StreamSettings: `{"network":"tcp","security":"reality","realitySettings":{"serverNames":["a"]}}`}

	_, err := Build(inbound, models.InboundClient{ID: "u"}, "h", "r", xtls.DefaultPolicy())
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("err=%v, want ErrIncompleteStream", err)
	}
}

func TestBuild_Trojan(t *testing.T) {
	inbound := models.Inbound{Protocol: "trojan", Port: 443, StreamSettings: `{"network":"ws","security":"tls","wsSettings":{"path":"/tr","headers":{"Host":"cdn"}}}`}

	link, err := Build(inbound, models.InboundClient{Password: "p@ss"}, "h.example", "r", xtls.DefaultPolicy())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(link, "trojan://p%40ss@h.example:443?") {
		t.Fatalf("link=%s", link)
	}
	u, _ := url.Parse(link)
	if u.User.Username() != "p@ss" {
		t.Fatalf("password=%q", u.User.Username())
	}
	if u.Query().Get("path") != "/tr" || u.Query().Get("host") != "cdn" {
		t.Fatalf("link=%s", link)
	}
}

func TestBuild_VMess(t *testing.T) {
	inbound := models.Inbound{Protocol: "vmess", Port: 80, StreamSettings: `{"network":"ws","security":"none","wsSettings":{"path":"/vm"}}`}

	link, err := Build(inbound, models.InboundClient{ID: "vm-1"}, "h", "Remark", xtls.DefaultPolicy())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(link, "vmess://"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var cfg vmessConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.ID != "vm-1" || cfg.Port != "80" || cfg.Net != "ws" || cfg.Path != "/vm" || cfg.PS != "Remark" || cfg.TLS != "" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestBuild_UnsupportedProtocol(t *testing.T) {
	_, err := Build(models.Inbound{Protocol: "wireguard"}, models.InboundClient{ID: "u"}, "h", "r", xtls.DefaultPolicy())
	if !errors.Is(err, ErrUnsupportedProtocol) {
		t.Fatalf("err=%v, want ErrUnsupportedProtocol", err)
	}
}

func TestAddress(t *testing.T) {
	cases := map[string]string{
		"https://panel.example.com:2053/path": "panel.example.com",
		"http://10.0.0.1:54321":               "10.0.0.1",
		"panel.example.com":                   "panel.example.com",
	}
	for in, want := range cases {
		got, err := Address(in)
		if err != nil || got != want {
			t.Fatalf("Address(%q)=(%q,%v), want=%q", in, got, err, want)
		}
	}
	if _, err := Address("https://"); err == nil {
		t.Fatalf("expected error for empty hostname")
	}
}

func TestRemark(t *testing.T) {
	if got := Remark("  Germany \t 1 "); got != "Germany 1" {
		t.Fatalf("Remark=%q", got)
	}
}
