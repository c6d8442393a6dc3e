package xrayclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

type fakePanel struct {
	loginStatus  int
	loginSuccess bool
	listStatus   func(call int32) int
	inbounds     string
	updateReply  string

	logins    atomic.Int32
	listCalls atomic.Int32

	mu         sync.Mutex
	lastUpdate map[string]any
	lastPath   string
}

func (p *fakePanel) update() (string, map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPath, p.lastUpdate
}

func (p *fakePanel) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		p.logins.Add(1)
		if p.loginStatus != 0 && p.loginStatus != http.StatusOK {
			w.WriteHeader(p.loginStatus)
			return
		}
		if p.loginSuccess {
			http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "session"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": p.loginSuccess, "msg": "", "obj": nil})
	})
	mux.HandleFunc("/panel/api/inbounds/list", func(w http.ResponseWriter, r *http.Request) {
		call := p.listCalls.Add(1)
		if p.listStatus != nil {
			if status := p.listStatus(call); status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
		}
		if _, err := r.Cookie("3x-ui"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"msg":"","obj":`+p.inbounds+`}`)
	})
	mux.HandleFunc("/panel/api/inbounds/updateClient/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode update body: %v", err)
		}
		p.mu.Lock()
		p.lastPath = r.URL.Path
		p.lastUpdate = body
		p.mu.Unlock()
		reply := p.updateReply
		if reply == "" {
			reply = `{"success":true,"msg":"updated"}`
		}
		_, _ = io.WriteString(w, reply)
	})
	return mux
}

func newTestClient(t *testing.T, panel *fakePanel) *Client {
	t.Helper()
	srv := httptest.NewServer(panel.handler(t))
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	host := models.Host{Name: "de-1", URL: srv.URL + "/", Username: "admin", Password: "secret"}
	return NewClient(host, Options{Timeout: 2 * time.Second}, logger)
}

func TestListInbounds_DecodesPanelPayload(t *testing.T) {
	panel := &fakePanel{
		loginSuccess: true,
		inbounds: `[{"id":3,"protocol":"vless","port":443,"remark":"main",
			"settings":"{\"clients\":[{\"id\":\"u-1\",\"email\":\"a@x\",\"flow\":\"\",\"limitIp\":2}]}",
			"streamSettings":"{\"network\":\"tcp\",\"security\":\"reality\"}"}]`,
	}
	c := newTestClient(t, panel)

	inbounds, err := c.ListInbounds(context.Background())
	if err != nil {
		t.Fatalf("ListInbounds: %v", err)
	}
	if len(inbounds) != 1 || inbounds[0].ID != 3 || inbounds[0].Protocol != "vless" {
		t.Fatalf("inbounds=%+v", inbounds)
	}

	settings, err := inbounds[0].ParseSettings()
	if err != nil {
		t.Fatalf("ParseSettings: %v", err)
	}
	if len(settings.Clients) != 1 || settings.Clients[0].ExternalID() != "u-1" {
		t.Fatalf("clients=%+v", settings.Clients)
	}
	if got := settings.Clients[0].ToDictionary()["limitIp"]; got != json.Number("2") {
		t.Fatalf("limitIp lost: %v", got)
	}

	if _, err := c.ListInbounds(context.Background()); err != nil {
		t.Fatalf("second ListInbounds: %v", err)
	}
	if n := panel.logins.Load(); n != 1 {
		t.Fatalf("logins=%d, want=1 (session cached)", n)
	}
}

func TestListInbounds_ReloginOnceOn401(t *testing.T) {
	panel := &fakePanel{
		loginSuccess: true,
		inbounds:     `[]`,
		listStatus: func(call int32) int {
			if call == 1 {
				return http.StatusUnauthorized
			}
			return http.StatusOK
		},
	}
	c := newTestClient(t, panel)

	if _, err := c.ListInbounds(context.Background()); err != nil {
		t.Fatalf("ListInbounds: %v", err)
	}
	if n := panel.logins.Load(); n != 2 {
		t.Fatalf("logins=%d, want=2", n)
	}
}

func TestListInbounds_RepeatedUnauthorizedIsAuthError(t *testing.T) {
	panel := &fakePanel{
		loginSuccess: true,
		listStatus:   func(int32) int { return http.StatusUnauthorized },
	}
	c := newTestClient(t, panel)

	_, err := c.ListInbounds(context.Background())
	if !apperrors.IsAuth(err) {
		t.Fatalf("err=%v, want AuthError", err)
	}
	if n := panel.listCalls.Load(); n != 2 {
		t.Fatalf("list calls=%d, want=2", n)
	}
}

func TestLogin_RejectedCredentials(t *testing.T) {
	c := newTestClient(t, &fakePanel{loginSuccess: false})

	err := c.Login(context.Background())
	if !apperrors.IsAuth(err) {
		t.Fatalf("err=%v, want AuthError", err)
	}
	if apperrors.Kind(err) != "auth_error" {
		t.Fatalf("kind=%s", apperrors.Kind(err))
	}
}

func TestListInbounds_ServerErrorIsUnreachable(t *testing.T) {
	panel := &fakePanel{
		loginSuccess: true,
		listStatus:   func(int32) int { return http.StatusBadGateway },
	}
	c := newTestClient(t, panel)

	_, err := c.ListInbounds(context.Background())
	if !apperrors.IsUnreachable(err) {
		t.Fatalf("err=%v, want HostUnreachableError", err)
	}
}

func TestListInbounds_MalformedPayloadIsUnreachable(t *testing.T) {
	c := newTestClient(t, &fakePanel{loginSuccess: true, inbounds: `{"not":"a list"}`})

	_, err := c.ListInbounds(context.Background())
	if !apperrors.IsUnreachable(err) {
		t.Fatalf("err=%v, want HostUnreachableError", err)
	}
}

func TestListInbounds_ClosedServerIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c := NewClient(models.Host{Name: "gone", URL: srv.URL}, Options{Timeout: time.Second}, logger)

	_, err := c.ListInbounds(context.Background())
	if !apperrors.IsUnreachable(err) {
		t.Fatalf("err=%v, want HostUnreachableError", err)
	}
}

func TestUpdateClient_SendsSettingsEnvelope(t *testing.T) {
	panel := &fakePanel{loginSuccess: true}
	c := newTestClient(t, panel)

	client := map[string]any{"id": "u-1", "email": "a@x", "flow": "xtls-rprx-vision"}
	if err := c.UpdateClient(context.Background(), 7, "u-1", client); err != nil {
		t.Fatalf("UpdateClient: %v", err)
	}

	path, body := panel.update()
	if path != "/panel/api/inbounds/updateClient/u-1" {
		t.Fatalf("path=%s", path)
	}
	if id, _ := body["id"].(float64); id != 7 {
		t.Fatalf("id=%v", body["id"])
	}

	raw, _ := body["settings"].(string)
	var settings struct {
		Clients []map[string]any `json:"clients"`
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		t.Fatalf("settings not a JSON string: %v", err)
	}
	if len(settings.Clients) != 1 || settings.Clients[0]["flow"] != "xtls-rprx-vision" {
		t.Fatalf("settings=%s", raw)
	}
}

func TestUpdateClient_RejectedByPanel(t *testing.T) {
	c := newTestClient(t, &fakePanel{loginSuccess: true, updateReply: `{"success":false,"msg":"client not found"}`})

	err := c.UpdateClient(context.Background(), 1, "missing", map[string]any{"id": "missing"})
	if apperrors.Kind(err) != "rejected" {
		t.Fatalf("err=%v kind=%s, want rejected", err, apperrors.Kind(err))
	}
}

func TestListInbounds_ConcurrentLogout(t *testing.T) {
	panel := &fakePanel{loginSuccess: true, inbounds: `[]`}
	c := newTestClient(t, panel)

	done := make(chan struct{})
	var logouts sync.WaitGroup
	logouts.Add(1)
	go func() {
		defer logouts.Done()
		for {
			select {
			case <-done:
				return
			default:
				c.Logout()
			}
		}
	}()

	var callers sync.WaitGroup
	for g := 0; g < 8; g++ {
		callers.Add(1)
		go func() {
			defer callers.Done()
			defer func() {
				if p := recover(); p != nil {
					t.Errorf("ListInbounds panicked: %v", p)
				}
			}()
			for i := 0; i < 300; i++ {
				if _, err := c.ListInbounds(context.Background()); err != nil {
					t.Errorf("ListInbounds: %v", err)
					return
				}
			}
		}()
	}

	callers.Wait()
	close(done)
	logouts.Wait()
}
