package models

import (
	"encoding/json"
	"time"
)

type AttendanceRecord struct {
	ID        string     `json:"id"`
	User      UserRef    `json:"userId"`
	Date      DateOnly   `json:"date"`
	CheckIn   *time.Time `json:"checkIn,omitempty"`
	CheckOut  *time.Time `json:"checkOut,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (a AttendanceRecord) CheckedIn() bool {
	return a.CheckIn != nil
}

func (a AttendanceRecord) CheckedOut() bool {
	return a.CheckOut != nil
}

// Worked is the time between check-in and check-out, zero while the day is open.
func (a AttendanceRecord) Worked() time.Duration {
	if a.CheckIn == nil || a.CheckOut == nil {
		return 0
	}
	return a.CheckOut.Sub(*a.CheckIn)
}

// UserRef points an attendance record at its user. A reference carries only
// the id and marshals as a bare string; an expanded ref carries the joined
// profile and marshals as an object, or null when the user no longer exists.
type UserRef struct {
	ID       string
	Profile  *Profile
	expanded bool
}

func Reference(id string) UserRef {
	return UserRef{ID: id}
}

func Expanded(id string, profile *Profile) UserRef {
	return UserRef{ID: id, Profile: profile, expanded: true}
}

func (r UserRef) IsExpanded() bool {
	return r.expanded
}

// Deleted reports whether an expanded ref found no matching user.
func (r UserRef) Deleted() bool {
	return r.expanded && r.Profile == nil
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	if !r.expanded {
		return json.Marshal(r.ID)
	}
	if r.Profile == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.Profile)
}
