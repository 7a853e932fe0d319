package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"hrms-service/models"
)

// MemoryUserStore is a process-local UserRepository for DB_ENGINE=memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]models.User)}
}

func (s *MemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return ErrDuplicate
	}
	if s.emailTaken(user.Email, "") {
		return ErrDuplicate
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalized := models.NormalizeEmail(email)
	for _, user := range s.users {
		if models.NormalizeEmail(user.Email) == normalized {
			return user, nil
		}
	}
	return models.User{}, ErrNotFound
}

func (s *MemoryUserStore) List(_ context.Context, filter UserFilter) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []models.User{}
	for _, user := range s.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		users = append(users, user)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (s *MemoryUserStore) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return ErrNotFound
	}
	if s.emailTaken(user.Email, user.ID) {
		return ErrDuplicate
	}
	s.users[user.ID] = *user
	return nil
}

func (s *MemoryUserStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *MemoryUserStore) emailTaken(email, exceptID string) bool {
	normalized := models.NormalizeEmail(email)
	for id, user := range s.users {
		if id != exceptID && models.NormalizeEmail(user.Email) == normalized {
			return true
		}
	}
	return false
}

type attendanceKey struct {
	userID string
	date   string
}

// MemoryAttendanceStore is a process-local AttendanceRepository. It enforces
// the same (user, date) uniqueness as the Postgres index.
type MemoryAttendanceStore struct {
	mu      sync.RWMutex
	users   UserRepository
	records map[attendanceKey]models.AttendanceRecord
}

func NewMemoryAttendanceStore(users UserRepository) *MemoryAttendanceStore {
	return &MemoryAttendanceStore{
		users:   users,
		records: make(map[attendanceKey]models.AttendanceRecord),
	}
}

func (s *MemoryAttendanceStore) FindByUserAndDate(_ context.Context, userID string, date models.DateOnly) (models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[attendanceKey{userID: userID, date: date.String()}]
	if !ok {
		return models.AttendanceRecord{}, ErrNotFound
	}
	return record, nil
}

func (s *MemoryAttendanceStore) Create(_ context.Context, record *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attendanceKey{userID: record.User.ID, date: record.Date.String()}
	if _, exists := s.records[key]; exists {
		return ErrDuplicate
	}
	stored := *record
	stored.User = models.Reference(record.User.ID)
	s.records[key] = stored
	return nil
}

func (s *MemoryAttendanceStore) Update(_ context.Context, record *models.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attendanceKey{userID: record.User.ID, date: record.Date.String()}
	existing, ok := s.records[key]
	if !ok || existing.ID != record.ID {
		return ErrNotFound
	}
	stored := *record
	stored.User = models.Reference(record.User.ID)
	s.records[key] = stored
	return nil
}

func (s *MemoryAttendanceStore) List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, error) {
	s.mu.RLock()
	records := []models.AttendanceRecord{}
	for _, record := range s.records {
		if filter.UserID != "" && record.User.ID != filter.UserID {
			continue
		}
		if filter.Start != nil && record.Date.Before(filter.Start.Time) {
			continue
		}
		if filter.End != nil && record.Date.After(filter.End.Time) {
			continue
		}
		records = append(records, record)
	}
	s.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Date.Equal(records[j].Date.Time) {
			return records[i].Date.After(records[j].Date.Time)
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if filter.ExpandUser {
		for i := range records {
			var profile *models.Profile
			user, err := s.users.FindByID(ctx, records[i].User.ID)
			switch {
			case err == nil:
				p := user.Profile()
				profile = &p
			case !errors.Is(err, ErrNotFound):
				return nil, err
			}
			records[i].User = models.Expanded(records[i].User.ID, profile)
		}
	}
	return records, nil
}
