package store

import (
	"context"

	"hrms-service/models"
)

type UserFilter struct {
	Role models.Role
}

// UserRepository persists users. Email lookups are case-insensitive and
// Create/Update return ErrDuplicate when the email is already taken.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type AttendanceFilter struct {
	UserID string
	Start  *models.DateOnly
	End    *models.DateOnly
	// ExpandUser joins the referenced user's profile into each record.
	ExpandUser bool
}

// AttendanceRepository persists one record per (user, date). Create returns
// ErrDuplicate when a record for that pair already exists.
type AttendanceRepository interface {
	FindByUserAndDate(ctx context.Context, userID string, date models.DateOnly) (models.AttendanceRecord, error)
	Create(ctx context.Context, record *models.AttendanceRecord) error
	Update(ctx context.Context, record *models.AttendanceRecord) error
	List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, error)
}
