// Package storage reads hosts, users and provisioned keys from the bot's SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"xui-sub-sync/internal/constants"
	apperrors "xui-sub-sync/internal/errors"
	"xui-sub-sync/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	telegram_id INTEGER PRIMARY KEY,
	username TEXT,
	registration_date TIMESTAMP,
	is_banned BOOLEAN DEFAULT 0,
	subscription_token TEXT UNIQUE
);
CREATE TABLE IF NOT EXISTS xui_hosts (
	host_name TEXT NOT NULL,
	host_url TEXT NOT NULL,
	host_username TEXT NOT NULL,
	host_pass TEXT NOT NULL,
	host_inbound_id INTEGER NOT NULL,
	is_enabled BOOLEAN DEFAULT 1
);
CREATE TABLE IF NOT EXISTS vpn_keys (
	key_id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	host_name TEXT NOT NULL,
	xui_client_uuid TEXT NOT NULL,
	key_email TEXT NOT NULL UNIQUE,
	expiry_date TIMESTAMP,
	created_date TIMESTAMP,
	connection_string TEXT,
	plan_id INTEGER
);
CREATE INDEX IF NOT EXISTS idx_vpn_keys_user ON vpn_keys(user_id);
`

// columns added to the bot's tables after their first release
var migrations = []string{
	`ALTER TABLE xui_hosts ADD COLUMN is_enabled BOOLEAN DEFAULT 1`,
	`ALTER TABLE vpn_keys ADD COLUMN plan_id INTEGER`,
	`ALTER TABLE users ADD COLUMN subscription_token TEXT`,
}

// naive timestamp layouts written by the bot, tried in order
var naiveLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
}

// Store wraps the SQLite database
type Store struct {
	db       *sql.DB
	path     string
	location *time.Location
	logger   *logrus.Logger
}

// Open opens or creates the database at path
func Open(path string, logger *logrus.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure database: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	// Columns already present make these fail; that is the expected case
	for _, migration := range migrations {
		db.Exec(migration)
	}

	logger.Infof("Opened key store at %s", path)

	return &Store{
		db:       db,
		path:     path,
		location: constants.StoreLocation,
		logger:   logger,
	}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SetLocation sets the zone naive timestamps are read in
func (s *Store) SetLocation(loc *time.Location) {
	s.location = loc
}

// ListHosts returns the enabled hosts, the registry the reconciler works on
func (s *Store) ListHosts(ctx context.Context) ([]models.Host, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT host_name, host_url, host_username, host_pass, host_inbound_id, COALESCE(is_enabled, 1)
		FROM xui_hosts
		WHERE COALESCE(is_enabled, 1) = 1
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []models.Host
	for rows.Next() {
		host, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// GetHost returns a host by name, enabled or not
func (s *Store) GetHost(ctx context.Context, name string) (models.Host, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT host_name, host_url, host_username, host_pass, host_inbound_id, COALESCE(is_enabled, 1)
		FROM xui_hosts
		WHERE host_name = ?
		LIMIT 1`, name)

	host, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Host{}, fmt.Errorf("host %s: %w", name, apperrors.ErrNotFound)
	}
	return host, err
}

// UpsertHost creates the host or replaces the record with the same name
func (s *Store) UpsertHost(ctx context.Context, host models.Host) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE xui_hosts
		SET host_url = ?, host_username = ?, host_pass = ?, host_inbound_id = ?, is_enabled = ?
		WHERE host_name = ?`,
		host.URL, host.Username, host.Password, host.InboundID, host.Enabled, host.Name)
	if err != nil {
		return fmt.Errorf("update host %s: %w", host.Name, err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO xui_hosts (host_name, host_url, host_username, host_pass, host_inbound_id, is_enabled)
			VALUES (?, ?, ?, ?, ?, ?)`,
			host.Name, host.URL, host.Username, host.Password, host.InboundID, host.Enabled); err != nil {
			return fmt.Errorf("insert host %s: %w", host.Name, err)
		}
	}

	return tx.Commit()
}

// UserByToken returns the user owning a subscription token
func (s *Store) UserByToken(ctx context.Context, token string) (models.User, error) {
	var (
		user     models.User
		username sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, username, subscription_token
		FROM users
		WHERE subscription_token = ?`, token).Scan(&user.TelegramID, &username, &user.SubscriptionToken)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query user: %w", err)
	}
	user.Username = username.String
	return user, nil
}

// ListUserKeys returns every key of the user in insertion order
func (s *Store) ListUserKeys(ctx context.Context, userID int64) ([]models.ProvisionedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key_id, user_id, host_name, xui_client_uuid, key_email,
		       CAST(expiry_date AS TEXT), COALESCE(connection_string, ''), COALESCE(plan_id, 0)
		FROM vpn_keys
		WHERE user_id = ?
		ORDER BY key_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var entries []models.ProvisionedEntry
	for rows.Next() {
		var (
			entry  models.ProvisionedEntry
			expiry sql.NullString
		)
		if err := rows.Scan(&entry.KeyID, &entry.UserID, &entry.HostName, &entry.RemoteClientID, &entry.Email,
			&expiry, &entry.ConnectionString, &entry.PlanID); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}

		if expiry.Valid && strings.TrimSpace(expiry.String) != "" {
			expiresAt, err := parseTimestamp(expiry.String, s.location)
			if err != nil {
				s.logger.Warnf("Key %d has unreadable expiry %q: %v", entry.KeyID, expiry.String, err)
			} else {
				entry.ExpiresAt = expiresAt
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHost(row scanner) (models.Host, error) {
	var host models.Host
	if err := row.Scan(&host.Name, &host.URL, &host.Username, &host.Password, &host.InboundID, &host.Enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Host{}, err
		}
		return models.Host{}, fmt.Errorf("scan host: %w", err)
	}
	return host, nil
}

// parseTimestamp reads the timestamps the bot writes; naive values are in loc
func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
