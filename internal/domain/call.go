package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Call directions and statuses.
const (
	CallDirectionInbound  = "inbound"
	CallDirectionOutbound = "outbound"
	CallDirectionWeb      = "web"

	CallStatusInitiated = "initiated"
	CallStatusActive    = "active"
	CallStatusCompleted = "completed"
	CallStatusFailed    = "failed"
)

// CallRecord is one voice session, written by the agent worker through the
// service API as the session progresses.
type CallRecord struct {
	ID           string      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AgentID      string      `json:"agent_id" gorm:"type:uuid;not null;index"`
	Agent        AgentConfig `json:"-" gorm:"foreignKey:AgentID;references:id"`
	Direction    string      `json:"direction" gorm:"type:varchar(16);not null"`
	RoomName     string      `json:"room_name" gorm:"type:varchar(255);index"`
	PeerIdentity string      `json:"peer_identity" gorm:"type:varchar(255)"`
	Status       string      `json:"status" gorm:"type:varchar(32);not null"`
	StartedAt    time.Time   `json:"started_at"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`
	Duration     int         `json:"duration"` // seconds
	Transcript   Transcript  `json:"transcript,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for CallRecord
func (CallRecord) TableName() string {
	return "call_records"
}

// TranscriptTurn is a single utterance in the call transcript.
type TranscriptTurn struct {
	Role    string `json:"role"` // "caller" or "agent"
	Text    string `json:"text"`
	AtMilli int64  `json:"at_ms"` // offset from call start
}

// Transcript is the jsonb-stored ordered list of turns.
type Transcript []TranscriptTurn

// Value implements driver.Valuer for Transcript
func (t Transcript) Value() (driver.Value, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for Transcript
func (t *Transcript) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Transcript", value)
	}

	return json.Unmarshal(bytes, t)
}

// CreateCallRecordRequest opens a call record (worker-facing, x-api-key).
type CreateCallRecordRequest struct {
	AgentID      string `json:"agent_id" validate:"required"`
	Direction    string `json:"direction" validate:"required"`
	RoomName     string `json:"room_name,omitempty"`
	PeerIdentity string `json:"peer_identity,omitempty"`
}

// UpdateCallRecordRequest closes or annotates a call record.
type UpdateCallRecordRequest struct {
	Status     *string     `json:"status,omitempty"`
	RoomName   *string     `json:"room_name,omitempty"`
	EndedAt    *time.Time  `json:"ended_at,omitempty"`
	Duration   *int        `json:"duration,omitempty"`
	Transcript *Transcript `json:"transcript,omitempty"`
}

// OutboundCallRequest asks the platform to dial a phone number from an agent.
type OutboundCallRequest struct {
	To string `json:"to" validate:"required"`
}

// OutboundCallResponse reports the created room and, when the vendor path
// is used, the vendor call SID. Vendor call state is not tracked after
// initiation.
type OutboundCallResponse struct {
	CallID    string `json:"call_id"`
	RoomName  string `json:"room_name"`
	SIPCallID string `json:"sip_call_id,omitempty"`
	VendorSID string `json:"vendor_sid,omitempty"`
}
