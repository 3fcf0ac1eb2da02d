package migration

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Row is one exported record keyed by column name.
type Row map[string]interface{}

// RowConverter maps one legacy MySQL row to its PostgreSQL shape. Converters
// drop the legacy numeric id, mint a fresh UUID and register it in the id map
// so dependent tables can rewrite their foreign keys.
type RowConverter func(src Row, ids *IDMap) (Row, error)

// IDMap tracks legacy id to generated UUID per table. It also collects the
// child rows whose originating enrollment cannot be resolved inline because
// children migrate before enrollments.
type IDMap struct {
	m          map[string]map[string]string
	childLinks []childEnrollmentLink
}

// childEnrollmentLink defers a child's enrollment FK until the enrollments
// table has migrated and its id map entries exist.
type childEnrollmentLink struct {
	childID            string
	legacyChildID      string
	legacyEnrollmentID string
}

// NewIDMap returns an empty id map.
func NewIDMap() *IDMap {
	return &IDMap{m: make(map[string]map[string]string)}
}

// Put registers the UUID generated for a legacy id.
func (im *IDMap) Put(table, legacyID, id string) {
	if im.m[table] == nil {
		im.m[table] = make(map[string]string)
	}
	im.m[table][legacyID] = id
}

// Get resolves a legacy id to its generated UUID.
func (im *IDMap) Get(table, legacyID string) (string, bool) {
	id, ok := im.m[table][legacyID]
	return id, ok
}

// DeferChildEnrollment records a child whose enrollment_id must be backfilled
// after the enrollments table migrates.
func (im *IDMap) DeferChildEnrollment(childID, legacyChildID, legacyEnrollmentID string) {
	im.childLinks = append(im.childLinks, childEnrollmentLink{
		childID:            childID,
		legacyChildID:      legacyChildID,
		legacyEnrollmentID: legacyEnrollmentID,
	})
}

// ChildEnrollmentLinks returns the deferred child to enrollment links.
func (im *IDMap) ChildEnrollmentLinks() []childEnrollmentLink {
	return im.childLinks
}

// Converters returns the per-table conversion registry. Each table's
// transform is explicit, there is no generic reflection-based mapping.
func Converters() map[string]RowConverter {
	return map[string]RowConverter{
		"users":                convertUser,
		"children":             convertChild,
		"enrollments":          convertEnrollment,
		"enrollment_documents": convertEnrollmentDocument,
		"children_documents":   convertChildDocument,
		"attendance":           convertAttendance,
		"notifications":        convertNotification,
		"settings":             convertSetting,
	}
}

func convertUser(src Row, ids *IDMap) (Row, error) {
	id := uuid.NewString()
	ids.Put("users", legacyKey(src["id"]), id)

	createdAt, err := asTime(src["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	dst := Row{
		"id":            id,
		"email":         strings.ToLower(asString(src["email"])),
		"password_hash": asString(src["password_hash"]),
		"first_name":    asString(src["first_name"]),
		"last_name":     asString(src["last_name"]),
		"phone":         asString(src["phone"]),
		"role":          strings.ToUpper(asString(src["role"])),
		"active":        asBool(src["active"]),
		"created_at":    createdAt,
		"updated_at":    createdAt,
	}
	if lastLogin, err := asTimePtr(src["last_login"]); err == nil {
		dst["last_login"] = lastLogin
	}
	return dst, nil
}

func convertChild(src Row, ids *IDMap) (Row, error) {
	parentID, ok := ids.Get("users", legacyKey(src["parent_id"]))
	if !ok {
		return nil, fmt.Errorf("unknown parent_id %v", src["parent_id"])
	}

	id := uuid.NewString()
	ids.Put("children", legacyKey(src["id"]), id)
	// The enrollments table migrates after children, so the originating
	// enrollment link is deferred and backfilled once its UUID exists.
	if src["enrollment_id"] != nil {
		ids.DeferChildEnrollment(id, legacyKey(src["id"]), legacyKey(src["enrollment_id"]))
	}

	birthDate, err := asTime(src["birth_date"])
	if err != nil {
		return nil, fmt.Errorf("birth_date: %w", err)
	}
	createdAt, err := asTime(src["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	return Row{
		"id":                      id,
		"parent_id":               parentID,
		"first_name":              asString(src["first_name"]),
		"last_name":               asString(src["last_name"]),
		"birth_date":              birthDate,
		"gender":                  strings.ToUpper(asString(src["gender"])),
		"medical_info":            asString(src["medical_info"]),
		"emergency_contact_name":  asString(src["emergency_contact_name"]),
		"emergency_contact_phone": asString(src["emergency_contact_phone"]),
		"created_at":              createdAt,
		"updated_at":              createdAt,
	}, nil
}

func convertEnrollment(src Row, ids *IDMap) (Row, error) {
	id := uuid.NewString()
	ids.Put("enrollments", legacyKey(src["id"]), id)

	birthDate, err := asTime(src["child_birth_date"])
	if err != nil {
		return nil, fmt.Errorf("child_birth_date: %w", err)
	}
	createdAt, err := asTime(src["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	dst := Row{
		"id":                      id,
		"applicant_first_name":    asString(src["applicant_first_name"]),
		"applicant_last_name":     asString(src["applicant_last_name"]),
		"applicant_email":         strings.ToLower(asString(src["applicant_email"])),
		"applicant_phone":         asString(src["applicant_phone"]),
		"child_first_name":        asString(src["child_first_name"]),
		"child_last_name":         asString(src["child_last_name"]),
		"child_birth_date":        birthDate,
		"child_gender":            strings.ToUpper(asString(src["child_gender"])),
		"medical_info":            asString(src["medical_info"]),
		"emergency_contact_name":  asString(src["emergency_contact_name"]),
		"emergency_contact_phone": asString(src["emergency_contact_phone"]),
		"status":                  strings.ToUpper(asString(src["status"])),
		"decision_notes":          asStringPtr(src["decision_notes"]),
		"created_at":              createdAt,
	}

	dst["approved_by"] = lookupOptional(ids, "users", src["approved_by"])
	dst["parent_id"] = lookupOptional(ids, "users", src["parent_id"])
	dst["child_id"] = lookupOptional(ids, "children", src["child_id"])

	decidedAt, err := asTimePtr(src["decided_at"])
	if err != nil {
		return nil, fmt.Errorf("decided_at: %w", err)
	}
	dst["decided_at"] = decidedAt

	return dst, nil
}

func convertEnrollmentDocument(src Row, ids *IDMap) (Row, error) {
	enrollmentID, ok := ids.Get("enrollments", legacyKey(src["enrollment_id"]))
	if !ok {
		return nil, fmt.Errorf("unknown enrollment_id %v", src["enrollment_id"])
	}

	uploadedAt, err := asTime(src["uploaded_at"])
	if err != nil {
		return nil, fmt.Errorf("uploaded_at: %w", err)
	}

	return Row{
		"id":            uuid.NewString(),
		"enrollment_id": enrollmentID,
		"file_path":     asString(src["file_path"]),
		"file_name":     asString(src["file_name"]),
		"mime_type":     asString(src["mime_type"]),
		"category":      asString(src["category"]),
		"size_bytes":    asInt64(src["size_bytes"]),
		"uploaded_at":   uploadedAt,
	}, nil
}

func convertChildDocument(src Row, ids *IDMap) (Row, error) {
	childID, ok := ids.Get("children", legacyKey(src["child_id"]))
	if !ok {
		return nil, fmt.Errorf("unknown child_id %v", src["child_id"])
	}

	createdAt, err := asTime(src["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	return Row{
		"id":         uuid.NewString(),
		"child_id":   childID,
		"file_path":  asString(src["file_path"]),
		"file_name":  asString(src["file_name"]),
		"mime_type":  asString(src["mime_type"]),
		"category":   asString(src["category"]),
		"size_bytes": asInt64(src["size_bytes"]),
		"created_at": createdAt,
	}, nil
}

func convertAttendance(src Row, ids *IDMap) (Row, error) {
	childID, ok := ids.Get("children", legacyKey(src["child_id"]))
	if !ok {
		return nil, fmt.Errorf("unknown child_id %v", src["child_id"])
	}
	recordedBy, ok := ids.Get("users", legacyKey(src["recorded_by"]))
	if !ok {
		return nil, fmt.Errorf("unknown recorded_by %v", src["recorded_by"])
	}

	date, err := asTime(src["date"])
	if err != nil {
		return nil, fmt.Errorf("date: %w", err)
	}
	checkIn, err := asTimePtr(src["check_in"])
	if err != nil {
		return nil, fmt.Errorf("check_in: %w", err)
	}
	checkOut, err := asTimePtr(src["check_out"])
	if err != nil {
		return nil, fmt.Errorf("check_out: %w", err)
	}
	createdAt, err := asTime(src["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	return Row{
		"id":          uuid.NewString(),
		"child_id":    childID,
		"date":        date,
		"check_in":    checkIn,
		"check_out":   checkOut,
		"notes":       asString(src["notes"]),
		"recorded_by": recordedBy,
		"created_at":  createdAt,
		"updated_at":  createdAt,
	}, nil
}

func convertNotification(src Row, ids *IDMap) (Row, error) {
	userID, ok := ids.Get("users", legacyKey(src["user_id"]))
	if !ok {
		return nil, fmt.Errorf("unknown user_id %v", src["user_id"])
	}

	createdAt, err := asTime(src["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	readAt, err := asTimePtr(src["read_at"])
	if err != nil {
		return nil, fmt.Errorf("read_at: %w", err)
	}

	return Row{
		"id":         uuid.NewString(),
		"user_id":    userID,
		"type":       strings.ToUpper(asString(src["type"])),
		"title":      asString(src["title"]),
		"body":       asString(src["body"]),
		"read_at":    readAt,
		"created_at": createdAt,
	}, nil
}

func convertSetting(src Row, ids *IDMap) (Row, error) {
	updatedAt, err := asTime(src["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}

	return Row{
		"key":        asString(src["key"]),
		"value":      asString(src["value"]),
		"type":       strings.ToLower(asString(src["type"])),
		"public":     asBool(src["public"]),
		"updated_by": lookupOptional(ids, "users", src["updated_by"]),
		"updated_at": updatedAt,
	}, nil
}

// lookupOptional resolves a nullable legacy foreign key, returning nil when
// the source value is NULL or the referenced row never made it across.
func lookupOptional(ids *IDMap, table string, raw interface{}) interface{} {
	if raw == nil {
		return nil
	}
	if id, ok := ids.Get(table, legacyKey(raw)); ok {
		return id
	}
	return nil
}

func legacyKey(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func asStringPtr(v interface{}) *string {
	if v == nil {
		return nil
	}
	s := asString(v)
	return &s
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case []byte:
		var n int64
		_, _ = fmt.Sscanf(string(t), "%d", &n)
		return n
	case string:
		var n int64
		_, _ = fmt.Sscanf(t, "%d", &n)
		return n
	default:
		return 0
	}
}

// asBool interprets the MySQL tinyint(1) encodings of a boolean.
func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case []byte:
		return string(t) == "1" || strings.EqualFold(string(t), "true")
	case string:
		return t == "1" || strings.EqualFold(t, "true")
	default:
		return false
	}
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case []byte:
		return parseTime(string(t))
	case string:
		return parseTime(t)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func asTimePtr(v interface{}) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	ts, err := asTime(v)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
