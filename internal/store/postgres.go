package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/huskiesio/api/internal/crypto"
	"github.com/huskiesio/api/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateUser inserts a new user record, assigning ID and timestamps.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	user.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.FirstName, user.LastName, user.Username, user.PasswordHash, user.Salt, user.PublicKey, user.CreatedAt, user.UpdatedAt)
	return err
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at
		FROM users WHERE id = $1
	`, id))
}

// GetUserByUsername retrieves a user by username.
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at
		FROM users WHERE username = $1
	`, username))
}

func (s *PostgresStore) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Username,
		&user.PasswordHash,
		&user.Salt,
		&user.PublicKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// SearchUsers retrieves users whose username starts with the query.
func (s *PostgresStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, first_name, last_name, username, password_hash, salt, public_key, created_at, updated_at
		FROM users
		WHERE username ILIKE $1 || '%' ESCAPE '\'
		ORDER BY username
		LIMIT $2
	`, escapeLike(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.FirstName,
			&user.LastName,
			&user.Username,
			&user.PasswordHash,
			&user.Salt,
			&user.PublicKey,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CountUsers returns the total number of users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateDevice inserts a new device record, assigning ID and timestamps.
func (s *PostgresStore) CreateDevice(ctx context.Context, device *models.Device) error {
	device.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO devices (id, user_id, name, public_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, device.ID, device.UserID, device.Name, device.PublicKey, device.CreatedAt, device.UpdatedAt)
	return err
}

// GetDeviceByID retrieves a device by ID.
func (s *PostgresStore) GetDeviceByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	device := &models.Device{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, public_key, created_at, updated_at
		FROM devices WHERE id = $1
	`, id).Scan(
		&device.ID,
		&device.UserID,
		&device.Name,
		&device.PublicKey,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return device, nil
}

// CreateThread inserts a new thread and its member list.
func (s *PostgresStore) CreateThread(ctx context.Context, thread *models.Thread) error {
	thread.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	thread.CreatedAt = now
	thread.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO threads (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, thread.ID, thread.Name, thread.Description, thread.CreatedAt, thread.UpdatedAt)
	if err != nil {
		return err
	}

	for _, memberID := range thread.MemberIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO thread_members (thread_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, thread.ID, memberID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetThreadByID retrieves a thread and its member list.
func (s *PostgresStore) GetThreadByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	thread := &models.Thread{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM threads WHERE id = $1
	`, id).Scan(
		&thread.ID,
		&thread.Name,
		&thread.Description,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	members, err := s.threadMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	thread.MemberIDs = members
	return thread, nil
}

func (s *PostgresStore) threadMembers(ctx context.Context, threadID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id FROM thread_members WHERE thread_id = $1
	`, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// UpdateThreadMembers replaces a thread's member list. The write is
// last-write-wins with respect to concurrent mutations of the same thread.
func (s *PostgresStore) UpdateThreadMembers(ctx context.Context, id uuid.UUID, memberIDs []uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM thread_members WHERE thread_id = $1`, id); err != nil {
		return err
	}
	for _, memberID := range memberIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO thread_members (thread_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, id, memberID)
		if err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE threads SET updated_at = $2 WHERE id = $1`, id, time.Now().UTC()); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetThreadsForUser retrieves all threads the user is a member of.
func (s *PostgresStore) GetThreadsForUser(ctx context.Context, userID uuid.UUID) ([]models.Thread, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.name, t.description, t.created_at, t.updated_at
		FROM threads t
		JOIN thread_members m ON m.thread_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threads []models.Thread
	for rows.Next() {
		var thread models.Thread
		err := rows.Scan(
			&thread.ID,
			&thread.Name,
			&thread.Description,
			&thread.CreatedAt,
			&thread.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
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
func (s *PostgresStore) CountThreads(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM threads`).Scan(&count)
	return count, err
}

// CreateMessage inserts one recipient copy of a chat event.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	msg.ID = crypto.NewUUIDv7()
	now := time.Now().UTC()
	msg.CreatedAt = now
	msg.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, thread_id, sender_id, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ThreadID, msg.SenderID, msg.Payload, msg.CreatedAt, msg.UpdatedAt)
	return err
}

// GetMessageByID retrieves a message by ID.
func (s *PostgresStore) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, thread_id, sender_id, payload, created_at, updated_at
		FROM messages WHERE id = $1
	`, id).Scan(
		&msg.ID,
		&msg.ThreadID,
		&msg.SenderID,
		&msg.Payload,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return msg, nil
}

// ListThreadMessagesBefore retrieves the limit messages of the thread
// immediately preceding the cursor (updated_at strictly before it),
// returned oldest first.
func (s *PostgresStore) ListThreadMessagesBefore(ctx context.Context, threadID uuid.UUID, before time.Time, limit int) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, thread_id, sender_id, payload, created_at, updated_at
		FROM messages
		WHERE thread_id = $1 AND updated_at < $2
		ORDER BY updated_at DESC
		LIMIT $3
	`, threadID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.SenderID,
			&msg.Payload,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query walks backwards from the cursor; the page is returned ascending.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages returns the total number of persisted message copies.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
