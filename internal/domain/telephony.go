package domain

import "time"

// TelephonyConfig holds the SIP wiring for one agent's phone number.
// One-to-one with AgentConfig; created by the provisioning flow.
type TelephonyConfig struct {
	ID              string      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AgentID         string      `json:"agent_id" gorm:"type:uuid;not null;uniqueIndex"`
	Agent           AgentConfig `json:"-" gorm:"foreignKey:AgentID;references:id"`
	PhoneNumber     string      `json:"phone_number" gorm:"type:varchar(32);not null"`
	ExophoneSID     string      `json:"exophone_sid" gorm:"type:varchar(128)"`
	InboundTrunkID  string      `json:"inbound_trunk_id" gorm:"type:varchar(128)"`
	OutboundTrunkID string      `json:"outbound_trunk_id" gorm:"type:varchar(128)"`
	DispatchRuleID  string      `json:"dispatch_rule_id" gorm:"type:varchar(128)"`
	SIPDomain       string      `json:"sip_domain" gorm:"type:varchar(255)"`
	Active          bool        `json:"active" gorm:"default:true"`
	CreatedAt       time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for TelephonyConfig
func (TelephonyConfig) TableName() string {
	return "telephony_configs"
}

// ProvisionTelephonyRequest asks the platform to wire a vendor number to an agent.
type ProvisionTelephonyRequest struct {
	PhoneNumber    string `json:"phone_number" validate:"required"`
	EnableOutbound bool   `json:"enable_outbound,omitempty"`
	SIPUsername    string `json:"sip_username,omitempty"`
	SIPPassword    string `json:"sip_password,omitempty"`
}

// Exophone is a vendor-provisioned virtual phone number from the inventory.
type Exophone struct {
	SID          string `json:"sid"`
	PhoneNumber  string `json:"phone_number"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Country      string `json:"country,omitempty"`
	InUse        bool   `json:"in_use"`
}
