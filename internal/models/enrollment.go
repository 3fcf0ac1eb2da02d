package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment request.
type EnrollmentStatus string

// Possible enrollment statuses. Rejected requests keep their row so the
// history of every application is preserved.
const (
	EnrollmentStatusPending            EnrollmentStatus = "PENDING"
	EnrollmentStatusApproved           EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejectedIncomplete EnrollmentStatus = "REJECTED_INCOMPLETE"
	EnrollmentStatusRejectedDeleted    EnrollmentStatus = "REJECTED_DELETED"
)

// Enrollment captures a pending or decided enrollment application.
type Enrollment struct {
	ID                    string           `db:"id" json:"id"`
	ApplicantFirstName    string           `db:"applicant_first_name" json:"applicant_first_name"`
	ApplicantLastName     string           `db:"applicant_last_name" json:"applicant_last_name"`
	ApplicantEmail        string           `db:"applicant_email" json:"applicant_email"`
	ApplicantPhone        string           `db:"applicant_phone" json:"applicant_phone"`
	ChildFirstName        string           `db:"child_first_name" json:"child_first_name"`
	ChildLastName         string           `db:"child_last_name" json:"child_last_name"`
	ChildBirthDate        time.Time        `db:"child_birth_date" json:"child_birth_date"`
	ChildGender           string           `db:"child_gender" json:"child_gender"`
	MedicalInfo           string           `db:"medical_info" json:"medical_info"`
	EmergencyContactName  string           `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string           `db:"emergency_contact_phone" json:"emergency_contact_phone"`
	Status                EnrollmentStatus `db:"status" json:"status"`
	ApprovedBy            *string          `db:"approved_by" json:"approved_by,omitempty"`
	ParentID              *string          `db:"parent_id" json:"parent_id,omitempty"`
	ChildID               *string          `db:"child_id" json:"child_id,omitempty"`
	DecisionNotes         *string          `db:"decision_notes" json:"decision_notes,omitempty"`
	DecidedAt             *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
}

// EnrollmentSummary enriches Enrollment with its attached document count for
// list views.
type EnrollmentSummary struct {
	Enrollment
	DocumentCount int `db:"document_count" json:"document_count"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	Status    EnrollmentStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// ApprovalResult reports the accounts created or reused by an approval.
type ApprovalResult struct {
	EnrollmentID  string `json:"enrollment_id"`
	ParentID      string `json:"parent_id"`
	ChildID       string `json:"child_id"`
	ParentCreated bool   `json:"parent_created"`
}
