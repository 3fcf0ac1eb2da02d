package models

import "time"

// Attendance records one child's presence on a given day.
type Attendance struct {
	ID         string     `db:"id" json:"id"`
	ChildID    string     `db:"child_id" json:"child_id"`
	Date       time.Time  `db:"date" json:"date"`
	CheckIn    *time.Time `db:"check_in" json:"check_in,omitempty"`
	CheckOut   *time.Time `db:"check_out" json:"check_out,omitempty"`
	Notes      string     `db:"notes" json:"notes"`
	RecordedBy string     `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	ChildID  string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

// AttendanceDetail joins the child name for list and report views.
type AttendanceDetail struct {
	Attendance
	ChildFirstName string `db:"child_first_name" json:"child_first_name"`
	ChildLastName  string `db:"child_last_name" json:"child_last_name"`
}

// DailySummary aggregates attendance for one day.
type DailySummary struct {
	Date       time.Time `db:"date" json:"date"`
	Present    int       `db:"present" json:"present"`
	CheckedOut int       `db:"checked_out" json:"checked_out"`
}
