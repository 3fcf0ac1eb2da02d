package models

import "time"

// EnrollmentDocument is a file attached to a pending enrollment.
type EnrollmentDocument struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	FilePath     string    `db:"file_path" json:"file_path"`
	FileName     string    `db:"file_name" json:"file_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	Category     string    `db:"category" json:"category"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// ChildDocument is a document copied to a child record on approval.
type ChildDocument struct {
	ID        string    `db:"id" json:"id"`
	ChildID   string    `db:"child_id" json:"child_id"`
	FilePath  string    `db:"file_path" json:"file_path"`
	FileName  string    `db:"file_name" json:"file_name"`
	MimeType  string    `db:"mime_type" json:"mime_type"`
	Category  string    `db:"category" json:"category"`
	SizeBytes int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
