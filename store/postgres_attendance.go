package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hrms-service/models"
)

const attendanceColumns = "a.id, a.user_id, a.date, a.check_in, a.check_out, a.created_at, a.updated_at"

type PostgresAttendanceStore struct {
	db *sql.DB
}

func NewPostgresAttendanceStore(db *sql.DB) *PostgresAttendanceStore {
	return &PostgresAttendanceStore{db: db}
}

func (s *PostgresAttendanceStore) FindByUserAndDate(ctx context.Context, userID string, date models.DateOnly) (models.AttendanceRecord, error) {
	if !validID(userID) {
		return models.AttendanceRecord{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT "+attendanceColumns+" FROM attendance a WHERE a.user_id = $1 AND a.date = $2::date",
		userID, date.String())
	record, err := scanAttendance(row, false)
	if err != nil {
		return models.AttendanceRecord{}, mapError(err)
	}
	return record, nil
}

func (s *PostgresAttendanceStore) Create(ctx context.Context, record *models.AttendanceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO attendance (id, user_id, date, check_in, check_out, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)`,
		record.ID, record.User.ID, record.Date.String(), nullTime(record.CheckIn), nullTime(record.CheckOut),
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert attendance: %w", mapError(err))
	}
	return nil
}

func (s *PostgresAttendanceStore) Update(ctx context.Context, record *models.AttendanceRecord) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE attendance SET check_in = $2, check_out = $3, updated_at = $4 WHERE id = $1",
		record.ID, nullTime(record.CheckIn), nullTime(record.CheckOut), record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update attendance: %w", mapError(err))
	}
	return requireAffected(result)
}

func (s *PostgresAttendanceStore) List(ctx context.Context, filter AttendanceFilter) ([]models.AttendanceRecord, error) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(attendanceColumns)
	if filter.ExpandUser {
		b.WriteString(", u.id, u.name, u.email, u.department, u.position FROM attendance a LEFT JOIN users u ON u.id = a.user_id")
	} else {
		b.WriteString(" FROM attendance a")
	}

	var conditions []string
	var args []interface{}
	next := func(value interface{}) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.UserID != "" {
		if !validID(filter.UserID) {
			return []models.AttendanceRecord{}, nil
		}
		conditions = append(conditions, "a.user_id = "+next(filter.UserID))
	}
	if filter.Start != nil {
		conditions = append(conditions, "a.date >= "+next(filter.Start.String())+"::date")
	}
	if filter.End != nil {
		conditions = append(conditions, "a.date <= "+next(filter.End.String())+"::date")
	}
	if len(conditions) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conditions, " AND "))
	}
	b.WriteString(" ORDER BY a.date DESC, a.created_at DESC")

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	records := []models.AttendanceRecord{}
	for rows.Next() {
		record, err := scanAttendance(rows, filter.ExpandUser)
		if err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

func scanAttendance(row scanner, expand bool) (models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	var userID string
	var date time.Time
	var checkIn, checkOut sql.NullTime
	dest := []interface{}{&record.ID, &userID, &date, &checkIn, &checkOut, &record.CreatedAt, &record.UpdatedAt}

	var profileID, name, email, department, position sql.NullString
	if expand {
		dest = append(dest, &profileID, &name, &email, &department, &position)
	}
	if err := row.Scan(dest...); err != nil {
		return models.AttendanceRecord{}, err
	}

	record.Date = models.DateFromParts(date)
	record.CheckIn = timePtr(checkIn)
	record.CheckOut = timePtr(checkOut)
	record.User = models.Reference(userID)
	if expand {
		var profile *models.Profile
		if profileID.Valid {
			profile = &models.Profile{
				ID:         profileID.String,
				Name:       name.String,
				Email:      email.String,
				Department: department.String,
				Position:   position.String,
			}
		}
		record.User = models.Expanded(userID, profile)
	}
	return record, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}
