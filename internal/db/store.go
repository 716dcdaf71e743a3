// internal/db/store.go
package db

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"agora/internal/api"
)

// Store is a local archive of deliberations, keyed by the backend's
// conversation ids.
type Store struct {
	db *sql.DB
}

type Conversation struct {
	ID        string
	Question  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Completed bool
}

type Message struct {
	ID             int64
	ConversationID string
	AgentName      string
	Content        string
	RoundNumber    int
	CreatedAt      time.Time
}

func Open() (*Store, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "conversations.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// DataDir returns the directory holding the archive database, the debug log
// and markdown exports.
func DataDir() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "agora"), nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		agent_name TEXT NOT NULL,
		content TEXT NOT NULL,
		round_number INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveConversation records a newly started conversation. Saving an id that
// already exists is a no-op.
func (s *Store) SaveConversation(id, question string) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO conversations (id, question) VALUES (?, ?)`,
		id, question,
	)
	return err
}

// SaveHistory replaces the archived messages for a conversation with the
// backend's authoritative list and marks the conversation completed. Replace
// rather than append: the terminal sync may run more than once per
// conversation (final event, then a transport error on the draining stream).
func (s *Store) SaveHistory(conversationID string, msgs []api.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return err
	}

	for _, m := range msgs {
		if _, err := tx.Exec(
			`INSERT INTO messages (conversation_id, agent_name, content, round_number) VALUES (?, ?, ?, ?)`,
			conversationID, m.AgentName, m.Content, m.RoundNumber,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		`UPDATE conversations SET completed = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		conversationID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ListConversations returns all archived conversations, most recent first.
func (s *Store) ListConversations() ([]Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, question, created_at, updated_at, completed
		 FROM conversations ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Question, &c.CreatedAt, &c.UpdatedAt, &c.Completed); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetConversation retrieves one archived conversation by id.
func (s *Store) GetConversation(id string) (*Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, question, created_at, updated_at, completed
		 FROM conversations WHERE id = ?`, id,
	)

	var c Conversation
	if err := row.Scan(&c.ID, &c.Question, &c.CreatedAt, &c.UpdatedAt, &c.Completed); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetMessages retrieves the archived messages for a conversation in stored
// order.
func (s *Store) GetMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, conversation_id, agent_name, content, round_number, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY id`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.AgentName, &m.Content, &m.RoundNumber, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
