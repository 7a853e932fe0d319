package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hrms-service/models"
)

const userColumns = "id, email, password_hash, name, role, department, position, created_at, updated_at"

type PostgresUserStore struct {
	db *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, role, department, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Email, user.PasswordHash, user.Name, string(user.Role),
		nullString(user.Department), nullString(user.Position), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapError(err))
	}
	return nil
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id string) (models.User, error) {
	if !validID(id) {
		return models.User{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	return scanUser(row)
}

func (s *PostgresUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email)
	return scanUser(row)
}

func (s *PostgresUserStore) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users"
	var args []interface{}
	if filter.Role != "" {
		query += " WHERE role = $1"
		args = append(args, string(filter.Role))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PostgresUserStore) Update(ctx context.Context, user *models.User) error {
	if !validID(user.ID) {
		return ErrNotFound
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = $2, password_hash = $3, name = $4, role = $5, department = $6, position = $7, updated_at = $8
		WHERE id = $1`,
		user.ID, user.Email, user.PasswordHash, user.Name, string(user.Role),
		nullString(user.Department), nullString(user.Position), user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", mapError(err))
	}
	return requireAffected(result)
}

func (s *PostgresUserStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(result)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (models.User, error) {
	var user models.User
	var role string
	var department, position sql.NullString
	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Name, &role,
		&department, &position, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, mapError(err)
	}
	user.Role = models.Role(strings.ToUpper(role))
	user.Department = department.String
	user.Position = position.String
	return user, nil
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
