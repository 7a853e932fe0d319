package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"hrms-service/models"
	"hrms-service/store"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	generateFromPassword   = bcrypt.GenerateFromPassword
	compareHashAndPassword = bcrypt.CompareHashAndPassword
)

type RegisterInput struct {
	Email      string
	Password   string
	Name       string
	Role       models.Role
	Department string
	Position   string
}

// UpdateInput holds the fields an administrator may change. Nil fields are
// left untouched.
type UpdateInput struct {
	Email      *string
	Name       *string
	Department *string
	Position   *string
	Role       *models.Role
}

type Credentials struct {
	users         store.UserRepository
	cost          int
	revocations   store.TokenRevocations
	revocationTTL time.Duration
	now           func() time.Time
	newID         func() string
}

func NewCredentials(users store.UserRepository, cost int) *Credentials {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Credentials{
		users: users,
		cost:  cost,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// WithRevocations makes role changes and deletions invalidate the user's
// outstanding tokens. ttl should be the token lifetime.
func (c *Credentials) WithRevocations(revocations store.TokenRevocations, ttl time.Duration) *Credentials {
	c.revocations = revocations
	c.revocationTTL = ttl
	return c
}

func (c *Credentials) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	role := input.Role
	if role == "" {
		role = models.RoleEmployee
	}
	if !role.Valid() {
		return models.User{}, ErrInvalidRole
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return models.User{}, ErrNameRequired
	}

	email := models.NormalizeEmail(input.Email)
	if _, err := c.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := generateFromPassword([]byte(input.Password), c.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return models.User{}, ErrPasswordTooLong
		}
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := c.now().UTC()
	user := models.User{
		ID:           c.newID(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         role,
		Department:   strings.TrimSpace(input.Department),
		Position:     strings.TrimSpace(input.Position),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := c.users.Create(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateEmployee is the administrator path; the role is always EMPLOYEE.
func (c *Credentials) CreateEmployee(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Role = models.RoleEmployee
	return c.Register(ctx, input)
}

func (c *Credentials) Verify(ctx context.Context, email, password string) (models.User, error) {
	user, err := c.users.FindByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("lookup email: %w", err)
	}
	if err := compareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (c *Credentials) FindByID(ctx context.Context, id string) (models.User, error) {
	return c.users.FindByID(ctx, id)
}

func (c *Credentials) FindAll(ctx context.Context, filter store.UserFilter) ([]models.User, error) {
	return c.users.List(ctx, filter)
}

func (c *Credentials) Update(ctx context.Context, id string, input UpdateInput) (models.User, error) {
	user, err := c.users.FindByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}

	if input.Email != nil {
		email := models.NormalizeEmail(*input.Email)
		existing, err := c.users.FindByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != user.ID:
			return models.User{}, ErrDuplicateEmail
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return models.User{}, fmt.Errorf("lookup email: %w", err)
		}
		user.Email = email
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return models.User{}, ErrNameRequired
		}
		user.Name = name
	}
	if input.Department != nil {
		user.Department = strings.TrimSpace(*input.Department)
	}
	if input.Position != nil {
		user.Position = strings.TrimSpace(*input.Position)
	}
	roleChanged := false
	if input.Role != nil {
		if !input.Role.Valid() {
			return models.User{}, ErrInvalidRole
		}
		roleChanged = *input.Role != user.Role
		user.Role = *input.Role
	}
	user.UpdatedAt = c.now().UTC()

	if err := c.users.Update(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	if roleChanged {
		c.revoke(ctx, user.ID)
	}
	return user, nil
}

func (c *Credentials) Delete(ctx context.Context, id string) error {
	if err := c.users.Delete(ctx, id); err != nil {
		return err
	}
	c.revoke(ctx, id)
	return nil
}

// revoke is best effort: the user change is already committed, so a
// failure only leaves old tokens valid until they expire.
func (c *Credentials) revoke(ctx context.Context, userID string) {
	if c.revocations == nil {
		return
	}
	if err := c.revocations.RevokeUser(ctx, userID, c.now(), c.revocationTTL); err != nil {
		log.Printf("token revocation failed: user_id=%s err=%v", userID, err)
	}
}
