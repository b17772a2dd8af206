// Package store persists channel state, registered groups and delivered
// messages in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/activeobjects-uk/nanoclaw/internal/channel"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// Store is a SQLite-backed store. It satisfies channel.StateStore.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path with the given
// driver and runs migrations. path may be ":memory:".
func Open(driver, path string) (*Store, error) {
	switch driver {
	case "":
		driver = DriverModernc
	case DriverModernc, DriverMattn:
	default:
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	memory := path == ":memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
			if _, err := db.Exec(pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to set database pragmas: %w", err)
			}
		}
	}

	return New(db)
}

// New wraps an existing connection and runs migrations.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store migration failed: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS router_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS registered_groups (
			jid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			folder TEXT NOT NULL,
			trigger_pattern TEXT NOT NULL DEFAULT '',
			requires_trigger INTEGER NOT NULL DEFAULT 1,
			added_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chats (
			jid TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			channel TEXT NOT NULL DEFAULT '',
			is_group INTEGER NOT NULL DEFAULT 0,
			last_message_time TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT NOT NULL,
			chat_jid TEXT NOT NULL,
			sender TEXT NOT NULL DEFAULT '',
			sender_name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			is_from_me INTEGER NOT NULL DEFAULT 0,
			is_bot_message INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (id, chat_jid)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat_time ON messages(chat_jid, timestamp)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SetState stores a key-value pair.
func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO router_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", key, err)
	}
	return nil
}

// GetState retrieves a value by key.
// Returns empty string if not found.
func (s *Store) GetState(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM router_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state %s: %w", key, err)
	}
	return value, nil
}

// DeleteState removes a key. Removing a missing key is not an error.
func (s *Store) DeleteState(key string) error {
	if _, err := s.db.Exec(`DELETE FROM router_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", key, err)
	}
	return nil
}

// Group is a chat the router listens to.
type Group struct {
	JID             string
	Name            string
	Folder          string
	Trigger         string
	RequiresTrigger bool
	AddedAt         time.Time
}

// RegisterGroup inserts or replaces a registered group.
func (s *Store) RegisterGroup(g Group) error {
	if g.AddedAt.IsZero() {
		g.AddedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO registered_groups (jid, name, folder, trigger_pattern, requires_trigger, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = excluded.name,
			folder = excluded.folder,
			trigger_pattern = excluded.trigger_pattern,
			requires_trigger = excluded.requires_trigger,
			added_at = excluded.added_at
	`, g.JID, g.Name, g.Folder, g.Trigger, boolToInt(g.RequiresTrigger), channel.FormatTimestamp(g.AddedAt))
	if err != nil {
		return fmt.Errorf("failed to register group %s: %w", g.JID, err)
	}
	return nil
}

// GetGroup returns the registered group for jid.
func (s *Store) GetGroup(jid string) (*Group, error) {
	row := s.db.QueryRow(`
		SELECT jid, name, folder, trigger_pattern, requires_trigger, added_at
		FROM registered_groups WHERE jid = ?
	`, jid)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("group %s: %w", jid, ErrNotFound)
	}
	return g, err
}

// ListGroups returns all registered groups ordered by jid.
func (s *Store) ListGroups() ([]*Group, error) {
	rows, err := s.db.Query(`
		SELECT jid, name, folder, trigger_pattern, requires_trigger, added_at
		FROM registered_groups ORDER BY jid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanGroup(row scanner) (*Group, error) {
	var (
		g        Group
		requires int
		addedAt  string
	)
	if err := row.Scan(&g.JID, &g.Name, &g.Folder, &g.Trigger, &requires, &addedAt); err != nil {
		return nil, err
	}
	g.RequiresTrigger = requires != 0
	g.AddedAt, _ = time.Parse(time.RFC3339Nano, addedAt)
	return &g, nil
}

// StoreChatMetadata upserts a chat, advancing its last message time.
func (s *Store) StoreChatMetadata(meta channel.ChatMetadata) error {
	_, err := s.db.Exec(`
		INSERT INTO chats (jid, name, channel, is_group, last_message_time)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(jid) DO UPDATE SET
			name = excluded.name,
			channel = excluded.channel,
			is_group = excluded.is_group,
			last_message_time = MAX(chats.last_message_time, excluded.last_message_time)
	`, meta.JID, meta.Name, meta.Channel, boolToInt(meta.IsGroup), meta.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to store chat metadata for %s: %w", meta.JID, err)
	}
	return nil
}

// Chat is a stored chat row.
type Chat struct {
	JID             string
	Name            string
	Channel         string
	IsGroup         bool
	LastMessageTime string
}

// GetChat returns the stored chat for jid.
func (s *Store) GetChat(jid string) (*Chat, error) {
	var (
		c       Chat
		isGroup int
	)
	err := s.db.QueryRow(`
		SELECT jid, name, channel, is_group, last_message_time FROM chats WHERE jid = ?
	`, jid).Scan(&c.JID, &c.Name, &c.Channel, &isGroup, &c.LastMessageTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat %s: %w", jid, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat %s: %w", jid, err)
	}
	c.IsGroup = isGroup != 0
	return &c, nil
}

// StoreMessage saves an inbound message. Re-storing the same id is a no-op.
func (s *Store) StoreMessage(msg channel.InboundMessage) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO messages
			(id, chat_jid, sender, sender_name, content, timestamp, is_from_me, is_bot_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ChatJID, msg.Sender, msg.SenderName, msg.Content, msg.Timestamp,
		boolToInt(msg.IsFromMe), boolToInt(msg.IsBotMessage))
	if err != nil {
		return fmt.Errorf("failed to store message %s: %w", msg.ID, err)
	}
	return nil
}

// RecentMessages returns up to limit messages for a chat, oldest first.
func (s *Store) RecentMessages(jid string, limit int) ([]channel.InboundMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_jid, sender, sender_name, content, timestamp, is_from_me, is_bot_message
		FROM (
			SELECT * FROM messages WHERE chat_jid = ?
			ORDER BY timestamp DESC, rowid DESC LIMIT ?
		) ORDER BY timestamp ASC
	`, jid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []channel.InboundMessage
	for rows.Next() {
		var (
			m           channel.InboundMessage
			fromMe, bot int
		)
		if err := rows.Scan(&m.ID, &m.ChatJID, &m.Sender, &m.SenderName, &m.Content, &m.Timestamp, &fromMe, &bot); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.IsFromMe = fromMe != 0
		m.IsBotMessage = bot != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
