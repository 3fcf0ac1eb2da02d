package models

import "time"

// Child represents an enrolled child linked to a parent account.
type Child struct {
	ID                    string    `db:"id" json:"id"`
	ParentID              string    `db:"parent_id" json:"parent_id"`
	EnrollmentID          string    `db:"enrollment_id" json:"enrollment_id"`
	FirstName             string    `db:"first_name" json:"first_name"`
	LastName              string    `db:"last_name" json:"last_name"`
	BirthDate             time.Time `db:"birth_date" json:"birth_date"`
	Gender                string    `db:"gender" json:"gender"`
	MedicalInfo           string    `db:"medical_info" json:"medical_info"`
	EmergencyContactName  string    `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string    `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// ChildFilter provides filters for listing children.
type ChildFilter struct {
	ParentID string
	Search   string
	Page     int
	PageSize int
}
