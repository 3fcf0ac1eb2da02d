package models

import "time"

// SettingType describes how a setting value should be interpreted.
type SettingType string

const (
	SettingTypeString SettingType = "string"
	SettingTypeNumber SettingType = "number"
	SettingTypeBool   SettingType = "boolean"
	SettingTypeJSON   SettingType = "json"
)

// Setting is a typed key/value configuration row managed by admins.
type Setting struct {
	Key       string      `db:"key" json:"key"`
	Value     string      `db:"value" json:"value"`
	Type      SettingType `db:"type" json:"type"`
	Public    bool        `db:"public" json:"public"`
	UpdatedBy *string     `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}
