package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/huskiesio/api/internal/crypto"
	"github.com/huskiesio/api/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the development
// fallback when no DATABASE_URL is configured.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/huskychat.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/huskychat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	// Timestamps are unix milliseconds; ids and uuids are TEXT.
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			username TEXT NOT NULL UNIQUE,
			password_hash BLOB NOT NULL,
			salt BLOB NOT NULL,
			public_key BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			name TEXT NOT NULL,
			public_key BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS thread_members (
			thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (thread_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES threads(id),
			sender_id TEXT NOT NULL REFERENCES users(id),
			payload BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_devices_user ON devices(user_id);
		CREATE INDEX IF NOT EXISTS idx_thread_members_user ON thread_members(user_id);
		CREATE INDEX IF NOT EXISTS idx_messages_thread_updated ON messages(thread_id, updated_at);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateUser inserts a new user record, assigning ID and timestamps.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID.String(), user.FirstName, user.LastName, user.Username, user.PasswordHash, user.Salt, user.PublicKey,
		now.UnixMilli(), now.UnixMilli())
	return err
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var id string
	var createdAt, updatedAt int64
	err := row.Scan(&id, &user.FirstName, &user.LastName, &user.Username,
		&user.PasswordHash, &user.Salt, &user.PublicKey, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	user.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()
	user.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at
		FROM users WHERE id = ?
	`, id.String()))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at
		FROM users WHERE username = ?
	`, username))
}

// SearchUsers retrieves users whose username starts with the query.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at
		FROM users
		WHERE username LIKE ? || '%' ESCAPE '\'
		ORDER BY username
		LIMIT ?
	`, escapeLike(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		var id string
		var createdAt, updatedAt int64
		err := rows.Scan(&id, &user.FirstName, &user.LastName, &user.Username,
			&user.PasswordHash, &user.Salt, &user.PublicKey, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		if user.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		user.CreatedAt = time.UnixMilli(createdAt).UTC()
		user.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		users = append(users, user)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateDevice inserts a new device record, assigning ID and timestamps.
func (s *SQLiteStore) CreateDevice(ctx context.Context, device *models.Device) error {
	device.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (id, user_id, name, public_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, device.ID.String(), device.UserID.String(), device.Name, device.PublicKey,
		now.UnixMilli(), now.UnixMilli())
	return err
}

// GetDeviceByID retrieves a device by ID.
func (s *SQLiteStore) GetDeviceByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	device := &models.Device{}
	var deviceID, userID string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, public_key, created_at, updated_at
		FROM devices WHERE id = ?
	`, id.String()).Scan(&deviceID, &userID, &device.Name, &device.PublicKey, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if device.ID, err = uuid.Parse(deviceID); err != nil {
		return nil, err
	}
	if device.UserID, err = uuid.Parse(userID); err != nil {
		return nil, err
	}
	device.CreatedAt = time.UnixMilli(createdAt).UTC()
	device.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return device, nil
}

// CreateThread inserts a new thread and its member list.
func (s *SQLiteStore) CreateThread(ctx context.Context, thread *models.Thread) error {
	thread.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	thread.CreatedAt = now
	thread.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO threads (id, name, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, thread.ID.String(), thread.Name, thread.Description, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return err
	}

	for _, memberID := range thread.MemberIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO thread_members (thread_id, user_id) VALUES (?, ?)
		`, thread.ID.String(), memberID.String())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetThreadByID retrieves a thread and its member list.
func (s *SQLiteStore) GetThreadByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	thread := &models.Thread{}
	var threadID string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM threads WHERE id = ?
	`, id.String()).Scan(&threadID, &thread.Name, &thread.Description, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if thread.ID, err = uuid.Parse(threadID); err != nil {
		return nil, err
	}
	thread.CreatedAt = time.UnixMilli(createdAt).UTC()
	thread.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	members, err := s.threadMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	thread.MemberIDs = members
	return thread, nil
}

func (s *SQLiteStore) threadMembers(ctx context.Context, threadID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM thread_members WHERE thread_id = ?
	`, threadID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// UpdateThreadMembers replaces a thread's member list (last-write-wins).
func (s *SQLiteStore) UpdateThreadMembers(ctx context.Context, id uuid.UUID, memberIDs []uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_members WHERE thread_id = ?`, id.String()); err != nil {
		return err
	}
	for _, memberID := range memberIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO thread_members (thread_id, user_id) VALUES (?, ?)
		`, id.String(), memberID.String())
		if err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `UPDATE threads SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().UnixMilli(), id.String())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetThreadsForUser retrieves all threads the user is a member of.
func (s *SQLiteStore) GetThreadsForUser(ctx context.Context, userID uuid.UUID) ([]models.Thread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.created_at, t.updated_at
		FROM threads t
		JOIN thread_members m ON m.thread_id = t.id
		WHERE m.user_id = ?
		ORDER BY t.updated_at DESC
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var thread models.Thread
		var threadID string
		var createdAt, updatedAt int64
		if err := rows.Scan(&threadID, &thread.Name, &thread.Description, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if thread.ID, err = uuid.Parse(threadID); err != nil {
			return nil, err
		}
		thread.CreatedAt = time.UnixMilli(createdAt).UTC()
		thread.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range threads {
		members, err := s.threadMembers(ctx, threads[i].ID)
		if err != nil {
			return nil, err
		}
		threads[i].MemberIDs = members
	}
	return threads, nil
}

// CountThreads returns the total number of threads.
func (s *SQLiteStore) CountThreads(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threads`).Scan(&count)
	return count, err
}

// CreateMessage inserts one recipient copy of a chat event.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID.String(), msg.ThreadID.String(), msg.SenderID.String(), msg.Payload,
		now.UnixMilli(), now.UnixMilli())
	return err
}

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	var msgID, threadID, senderID string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, thread_id, sender_id, payload, created_at, updated_at
		FROM messages WHERE id = ?
	`, id.String()).Scan(&msgID, &threadID, &senderID, &msg.Payload, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if msg.ID, err = uuid.Parse(msgID); err != nil {
		return nil, err
	}
	if msg.ThreadID, err = uuid.Parse(threadID); err != nil {
		return nil, err
	}
	if msg.SenderID, err = uuid.Parse(senderID); err != nil {
		return nil, err
	}
	msg.CreatedAt = time.UnixMilli(createdAt).UTC()
	msg.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return msg, nil
}

// ListThreadMessagesBefore retrieves the limit messages of the thread
// immediately preceding the cursor, returned oldest first.
func (s *SQLiteStore) ListThreadMessagesBefore(ctx context.Context, threadID uuid.UUID, before time.Time, limit int) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, sender_id, payload, created_at, updated_at
		FROM messages
		WHERE thread_id = ? AND updated_at < ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, threadID.String(), before.UnixMilli(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var msgID, thID, senderID string
		var createdAt, updatedAt int64
		if err := rows.Scan(&msgID, &thID, &senderID, &msg.Payload, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if msg.ID, err = uuid.Parse(msgID); err != nil {
			return nil, err
		}
		if msg.ThreadID, err = uuid.Parse(thID); err != nil {
			return nil, err
		}
		if msg.SenderID, err = uuid.Parse(senderID); err != nil {
			return nil, err
		}
		msg.CreatedAt = time.UnixMilli(createdAt).UTC()
		msg.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages returns the total number of persisted message copies.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
