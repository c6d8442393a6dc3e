package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := Open(filepath.Join(t.TempDir(), "users.db"), logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHosts_UpsertListGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	hosts := []models.Host{
		{Name: "de-1", URL: "https://de:2053", Username: "admin", Password: "p1", InboundID: 1, Enabled: true},
		{Name: "nl-1", URL: "https://nl:2053", Username: "admin", Password: "p2", InboundID: 2, Enabled: false},
		{Name: "fi-1", URL: "https://fi:2053", Username: "admin", Password: "p3", InboundID: 3, Enabled: true},
	}
	for _, h := range hosts {
		if err := s.UpsertHost(ctx, h); err != nil {
			t.Fatalf("UpsertHost(%s): %v", h.Name, err)
		}
	}

	listed, err := s.ListHosts(ctx)
	if err != nil {
		t.Fatalf("ListHosts: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "de-1" || listed[1].Name != "fi-1" {
		t.Fatalf("listed=%+v", listed)
	}
	if listed[0].Password != "p1" || listed[0].InboundID != 1 || !listed[0].Enabled {
		t.Fatalf("host=%+v", listed[0])
	}

	disabled, err := s.GetHost(ctx, "nl-1")
	if err != nil {
		t.Fatalf("GetHost: %v", err)
	}
	if disabled.Enabled || disabled.URL != "https://nl:2053" {
		t.Fatalf("disabled=%+v", disabled)
	}

	updated := hosts[0]
	updated.Password = "rotated"
	if err := s.UpsertHost(ctx, updated); err != nil {
		t.Fatalf("UpsertHost update: %v", err)
	}
	got, _ := s.GetHost(ctx, "de-1")
	if got.Password != "rotated" {
		t.Fatalf("password=%q", got.Password)
	}
	listed, _ = s.ListHosts(ctx)
	if len(listed) != 2 {
		t.Fatalf("upsert duplicated host: %+v", listed)
	}

	if _, err := s.GetHost(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestUserByToken(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.db.Exec(`INSERT INTO users (telegram_id, username, subscription_token) VALUES (42, 'alice', 'tok-1'), (43, NULL, 'tok-2')`); err != nil {
		t.Fatalf("insert users: %v", err)
	}

	user, err := s.UserByToken(ctx, "tok-1")
	if err != nil || user.TelegramID != 42 || user.Username != "alice" {
		t.Fatalf("user=%+v err=%v", user, err)
	}
	user, err = s.UserByToken(ctx, "tok-2")
	if err != nil || user.TelegramID != 43 || user.Username != "" {
		t.Fatalf("user=%+v err=%v", user, err)
	}
	if _, err := s.UserByToken(ctx, "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestListUserKeys_ParsesStoredTimestamps(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`
		INSERT INTO vpn_keys (user_id, host_name, xui_client_uuid, key_email, expiry_date, connection_string, plan_id) VALUES
		(42, 'de-1', 'u-1', 'a@de', '2026-03-01 12:00:00', 'vless://u-1@de:443#de', 7),
		(42, 'de-1', 'u-2', 'b@de', '2026-03-01 12:00:00.250000', NULL, NULL),
		(42, 'nl-1', 'u-3', 'c@nl', '2026-03-01T12:00:00+00:00', 'vless://u-3@nl:443#nl', 1),
		(42, 'fi-1', 'u-4', 'd@fi', NULL, '', NULL),
		(99, 'de-1', 'u-5', 'e@de', '2026-03-01 12:00:00', '', NULL)`)
	if err != nil {
		t.Fatalf("insert keys: %v", err)
	}

	keys, err := s.ListUserKeys(ctx, 42)
	if err != nil {
		t.Fatalf("ListUserKeys: %v", err)
	}
	if len(keys) != 4 {
		t.Fatalf("keys=%d, want=4", len(keys))
	}

	msk := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if !keys[0].ExpiresAt.Equal(msk) {
		t.Fatalf("naive expiry=%s, want=%s", keys[0].ExpiresAt.UTC(), msk)
	}
	if !keys[1].ExpiresAt.Equal(msk.Add(250 * time.Millisecond)) {
		t.Fatalf("fractional expiry=%s", keys[1].ExpiresAt.UTC())
	}
	if !keys[2].ExpiresAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("zoned expiry=%s", keys[2].ExpiresAt.UTC())
	}
	if !keys[3].ExpiresAt.IsZero() || keys[3].IsActive(time.Now()) {
		t.Fatalf("null expiry=%s", keys[3].ExpiresAt)
	}

	if keys[0].RemoteClientID != "u-1" || keys[0].Email != "a@de" || keys[0].PlanID != 7 || keys[0].ConnectionString != "vless://u-1@de:443#de" {
		t.Fatalf("key=%+v", keys[0])
	}
	if keys[1].ConnectionString != "" || keys[1].PlanID != 0 {
		t.Fatalf("nullable columns=%+v", keys[1])
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	cases := map[string]time.Time{
		"2026-01-02":                time.Date(2026, 1, 2, 0, 0, 0, 0, loc),
		"2026-01-02 10:30":          time.Date(2026, 1, 2, 10, 30, 0, 0, loc),
		"2026-01-02T10:30:00":       time.Date(2026, 1, 2, 10, 30, 0, 0, loc),
		"2026-01-02 10:30:00+03:00": time.Date(2026, 1, 2, 10, 30, 0, 0, loc),
		"2026-01-02T07:30:00Z":      time.Date(2026, 1, 2, 10, 30, 0, 0, loc),
	}
	for in, want := range cases {
		got, err := parseTimestamp(in, loc)
		if err != nil || !got.Equal(want) {
			t.Fatalf("parseTimestamp(%q)=(%s,%v), want=%s", in, got, err, want)
		}
	}
	if _, err := parseTimestamp("yesterday", loc); err == nil {
		t.Fatalf("expected error")
	}
}
