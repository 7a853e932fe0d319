package services

import (
	"context"
	"errors"
	"time"

	"hrms-service/models"
	"hrms-service/store"

	"github.com/google/uuid"
)

// TodayStatus is the caller's record for the current day, if any.
type TodayStatus struct {
	Attendance *models.AttendanceRecord `json:"attendance"`
	CheckedIn  bool                     `json:"checkedIn"`
	CheckedOut bool                     `json:"checkedOut"`
}

type DateRange struct {
	Start *models.DateOnly
	End   *models.DateOnly
}

// Ledger runs the daily attendance cycle: absent, checked in, checked out.
// "Today" is the server's local calendar date when the call is made.
type Ledger struct {
	records store.AttendanceRepository
	now     func() time.Time
	newID   func() string
}

func NewLedger(records store.AttendanceRepository) *Ledger {
	return &Ledger{records: records, now: time.Now, newID: uuid.NewString}
}

// CheckIn opens today's record. created is false when an existing record
// without a check-in was filled in rather than a new one inserted.
func (l *Ledger) CheckIn(ctx context.Context, userID string) (record models.AttendanceRecord, created bool, err error) {
	now := l.now()
	today := models.DateOf(now)
	stamp := now.UTC()

	existing, err := l.records.FindByUserAndDate(ctx, userID, today)
	switch {
	case err == nil:
		if existing.CheckedIn() {
			return models.AttendanceRecord{}, false, ErrAlreadyCheckedIn
		}
		existing.CheckIn = &stamp
		existing.UpdatedAt = stamp
		if err := l.records.Update(ctx, &existing); err != nil {
			return models.AttendanceRecord{}, false, err
		}
		return existing, false, nil
	case !errors.Is(err, store.ErrNotFound):
		return models.AttendanceRecord{}, false, err
	}

	record = models.AttendanceRecord{
		ID:        l.newID(),
		User:      models.Reference(userID),
		Date:      today,
		CheckIn:   &stamp,
		CreatedAt: stamp,
		UpdatedAt: stamp,
	}
	if err := l.records.Create(ctx, &record); err != nil {
		// Lost a concurrent check-in race on the (user, date) index.
		if errors.Is(err, store.ErrDuplicate) {
			return models.AttendanceRecord{}, false, ErrAlreadyCheckedIn
		}
		return models.AttendanceRecord{}, false, err
	}
	return record, true, nil
}

func (l *Ledger) CheckOut(ctx context.Context, userID string) (models.AttendanceRecord, error) {
	now := l.now()
	record, err := l.records.FindByUserAndDate(ctx, userID, models.DateOf(now))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.AttendanceRecord{}, ErrMustCheckInFirst
		}
		return models.AttendanceRecord{}, err
	}
	if !record.CheckedIn() {
		return models.AttendanceRecord{}, ErrMustCheckInFirst
	}
	if record.CheckedOut() {
		return models.AttendanceRecord{}, ErrAlreadyCheckedOut
	}

	stamp := now.UTC()
	record.CheckOut = &stamp
	record.UpdatedAt = stamp
	if err := l.records.Update(ctx, &record); err != nil {
		return models.AttendanceRecord{}, err
	}
	return record, nil
}

func (l *Ledger) Today(ctx context.Context, userID string) (TodayStatus, error) {
	record, err := l.records.FindByUserAndDate(ctx, userID, models.DateOf(l.now()))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TodayStatus{}, nil
		}
		return TodayStatus{}, err
	}
	return TodayStatus{
		Attendance: &record,
		CheckedIn:  record.CheckedIn(),
		CheckedOut: record.CheckedOut(),
	}, nil
}

// History lists the user's records, newest date first.
func (l *Ledger) History(ctx context.Context, userID string, dates DateRange) ([]models.AttendanceRecord, error) {
	return l.records.List(ctx, store.AttendanceFilter{
		UserID: userID,
		Start:  dates.Start,
		End:    dates.End,
	})
}
