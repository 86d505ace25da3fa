package domain

import "time"

// PlatformSetting is a global key/value setting, e.g. the shared SIP domain.
type PlatformSetting struct {
	Key       string    `json:"key" gorm:"type:varchar(128);primary_key"`
	Value     string    `json:"value" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for PlatformSetting
func (PlatformSetting) TableName() string {
	return "platform_settings"
}

// Well-known platform setting keys.
const (
	SettingSIPDomain = "sip_domain"
)
