package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huskiesio/api/internal/crypto"
	"github.com/huskiesio/api/internal/models"
)

// MemoryStore is an in-memory DataStore used in tests and as a throwaway
// development backend. Unlike the SQL stores it honors timestamps already set
// on a record, which lets tests control pagination cursors.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]models.User
	devices  map[uuid.UUID]models.Device
	threads  map[uuid.UUID]models.Thread
	messages map[uuid.UUID]models.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]models.User),
		devices:  make(map[uuid.UUID]models.Device),
		threads:  make(map[uuid.UUID]models.Thread),
		messages: make(map[uuid.UUID]models.Message),
	}
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	if updatedAt.IsZero() {
		*updatedAt = now
	}
}

// CreateUser inserts a new user record.
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = crypto.NewUUIDv7()
	stamp(&user.CreatedAt, &user.UpdatedAt)
	s.users[user.ID] = *user
	return nil
}

// GetUserByID retrieves a user by ID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		u := user
		return &u, nil
	}
	return nil, nil
}

// GetUserByUsername retrieves a user by username.
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// SearchUsers retrieves users whose username starts with the query.
func (s *MemoryStore) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []models.User
	for _, user := range s.users {
		if strings.HasPrefix(strings.ToLower(user.Username), strings.ToLower(query)) {
			users = append(users, user)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// CountUsers returns the total number of users.
func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// CreateDevice inserts a new device record.
func (s *MemoryStore) CreateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	device.ID = crypto.NewUUIDv7()
	stamp(&device.CreatedAt, &device.UpdatedAt)
	s.devices[device.ID] = *device
	return nil
}

// GetDeviceByID retrieves a device by ID.
func (s *MemoryStore) GetDeviceByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if device, ok := s.devices[id]; ok {
		d := device
		return &d, nil
	}
	return nil, nil
}

// CreateThread inserts a new thread.
func (s *MemoryStore) CreateThread(ctx context.Context, thread *models.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread.ID = crypto.NewUUIDv7()
	stamp(&thread.CreatedAt, &thread.UpdatedAt)
	s.threads[thread.ID] = *thread
	return nil
}

// GetThreadByID retrieves a thread by ID.
func (s *MemoryStore) GetThreadByID(ctx context.Context, id uuid.UUID) (*models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if thread, ok := s.threads[id]; ok {
		t := thread
		t.MemberIDs = append([]uuid.UUID(nil), thread.MemberIDs...)
		return &t, nil
	}
	return nil, nil
}

// UpdateThreadMembers replaces a thread's member list (last-write-wins).
func (s *MemoryStore) UpdateThreadMembers(ctx context.Context, id uuid.UUID, memberIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	thread, ok := s.threads[id]
	if !ok {
		return nil
	}
	thread.MemberIDs = append([]uuid.UUID(nil), memberIDs...)
	thread.UpdatedAt = time.Now().UTC()
	s.threads[id] = thread
	return nil
}

// GetThreadsForUser retrieves all threads the user is a member of.
func (s *MemoryStore) GetThreadsForUser(ctx context.Context, userID uuid.UUID) ([]models.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var threads []models.Thread
	for _, thread := range s.threads {
		for _, member := range thread.MemberIDs {
			if member == userID {
				t := thread
				t.MemberIDs = append([]uuid.UUID(nil), thread.MemberIDs...)
				threads = append(threads, t)
				break
			}
		}
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].UpdatedAt.After(threads[j].UpdatedAt) })
	return threads, nil
}

// CountThreads returns the total number of threads.
func (s *MemoryStore) CountThreads(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.threads)), nil
}

// CreateMessage inserts one recipient copy of a chat event.
func (s *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = crypto.NewUUIDv7()
	stamp(&msg.CreatedAt, &msg.UpdatedAt)
	s.messages[msg.ID] = *msg
	return nil
}

// GetMessageByID retrieves a message by ID.
func (s *MemoryStore) GetMessageByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if msg, ok := s.messages[id]; ok {
		m := msg
		return &m, nil
	}
	return nil, nil
}

// ListThreadMessagesBefore retrieves the limit messages of the thread
// immediately preceding the cursor, returned oldest first.
func (s *MemoryStore) ListThreadMessagesBefore(ctx context.Context, threadID uuid.UUID, before time.Time, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var messages []models.Message
	for _, msg := range s.messages {
		if msg.ThreadID == threadID && msg.UpdatedAt.Before(before) {
			messages = append(messages, msg)
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].UpdatedAt.Before(messages[j].UpdatedAt) })
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// CountMessages returns the total number of persisted message copies.
func (s *MemoryStore) CountMessages(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.messages)), nil
}

// MemoryCache is an in-memory CacheStore for tests and development.
type MemoryCache struct {
	mu            sync.Mutex
	registrations map[string]cacheEntry
	counters      map[string]counterEntry
}

type cacheEntry struct {
	reg       models.Registration
	expiresAt time.Time
}

type counterEntry struct {
	count     int
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		registrations: make(map[string]cacheEntry),
		counters:      make(map[string]counterEntry),
	}
}

// Close is a no-op.
func (c *MemoryCache) Close() error { return nil }

// Ping always succeeds.
func (c *MemoryCache) Ping(ctx context.Context) error { return nil }

// PutRegistration stages a registration with a TTL.
func (c *MemoryCache) PutRegistration(ctx context.Context, reg *models.Registration, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registrations[reg.ID] = cacheEntry{reg: *reg, expiresAt: time.Now().Add(ttl)}
	return nil
}

// GetRegistration retrieves a staged registration if it has not expired.
func (c *MemoryCache) GetRegistration(ctx context.Context, id string) (*models.Registration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.registrations[id]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.registrations, id)
		return nil, nil
	}
	reg := entry.reg
	return &reg, nil
}

// DeleteRegistration removes a staged registration.
func (c *MemoryCache) DeleteRegistration(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.registrations, id)
	return nil
}

// Allow records one hit against the key and reports whether it is within limit.
func (c *MemoryCache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	entry, ok := c.counters[key]
	if !ok || now.After(entry.expiresAt) {
		entry = counterEntry{expiresAt: now.Add(window)}
	}
	entry.count++
	c.counters[key] = entry
	return entry.count <= limit, nil
}
