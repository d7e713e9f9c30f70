package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/huskiesio/api/internal/models"
)

// escapeLike escapes LIKE/ILIKE metacharacters so a search query matches
// usernames literally instead of as a pattern.
func escapeLike(query string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(query)
}

// DataStore defines the interface for persistent storage of users, devices,
// threads and messages. PostgresStore, SQLiteStore and MemoryStore implement
// this interface. Lookups for absent records return (nil, nil), not an error.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
	CountUsers(ctx context.Context) (int64, error)

	// Device operations
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDeviceByID(ctx context.Context, id uuid.UUID) (*models.Device, error)

	// Thread operations
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThreadByID(ctx context.Context, id uuid.UUID) (*models.Thread, error)
	UpdateThreadMembers(ctx context.Context, id uuid.UUID, memberIDs []uuid.UUID) error
	GetThreadsForUser(ctx context.Context, userID uuid.UUID) ([]models.Thread, error)
	CountThreads(ctx context.Context) (int64, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListThreadMessagesBefore(ctx context.Context, threadID uuid.UUID, before time.Time, limit int) ([]models.Message, error)
	CountMessages(ctx context.Context) (int64, error)
}

// CacheStore defines the interface for short-lived state: staged registrations
// (bounded by the verification-code window) and rate-limit counters.
// RedisStore and MemoryCache implement this interface.
type CacheStore interface {
	Close() error
	Ping(ctx context.Context) error

	PutRegistration(ctx context.Context, reg *models.Registration, ttl time.Duration) error
	GetRegistration(ctx context.Context, id string) (*models.Registration, error)
	DeleteRegistration(ctx context.Context, id string) error

	// Allow records one hit against the key and reports whether the key is
	// still within limit for the window.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
