package domain

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// AgentConfig represents one user-configured voice assistant.
type AgentConfig struct {
	ID           string  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID       string  `json:"user_id" gorm:"type:uuid;not null;index"`
	User         User    `json:"-" gorm:"foreignKey:UserID;references:id"`
	Name         string  `json:"name" gorm:"type:varchar(255);not null"`
	Instructions string  `json:"instructions" gorm:"type:text"`
	Voice        string  `json:"voice" gorm:"type:varchar(64)"`
	Greeting     string  `json:"greeting" gorm:"type:text"`
	LLMModel     string  `json:"llm_model" gorm:"type:varchar(128)"`
	STTModel     string  `json:"stt_model" gorm:"type:varchar(128)"`
	TTSModel     string  `json:"tts_model" gorm:"type:varchar(128)"`
	EnabledTools ToolList `json:"enabled_tools" gorm:"type:jsonb"`

	IsPublic  bool    `json:"is_public" gorm:"default:false"`
	ShareCode *string `json:"share_code,omitempty" gorm:"type:varchar(16);uniqueIndex"`

	KnowledgeBaseEnabled bool `json:"knowledge_base_enabled" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for AgentConfig
func (AgentConfig) TableName() string {
	return "agent_configs"
}

// Defaults applied when a create request omits optional fields.
const (
	DefaultVoice    = "alloy"
	DefaultLLMModel = "openai/gpt-4o-mini"
	DefaultSTTModel = "deepgram/nova-2"
	DefaultTTSModel = "openai/tts-1"
	DefaultGreeting = "Hello! How can I help you today?"
)

// CreateAgentConfigRequest represents the request to create a new agent
type CreateAgentConfigRequest struct {
	Name                 string   `json:"name" validate:"required"`
	Instructions         string   `json:"instructions,omitempty"`
	Voice                string   `json:"voice,omitempty"`
	Greeting             string   `json:"greeting,omitempty"`
	LLMModel             string   `json:"llm_model,omitempty"`
	STTModel             string   `json:"stt_model,omitempty"`
	TTSModel             string   `json:"tts_model,omitempty"`
	EnabledTools         []string `json:"enabled_tools,omitempty"`
	IsPublic             bool     `json:"is_public,omitempty"`
	KnowledgeBaseEnabled bool     `json:"knowledge_base_enabled,omitempty"`
}

// UpdateAgentConfigRequest represents a partial update; nil fields are untouched.
type UpdateAgentConfigRequest struct {
	Name                 *string   `json:"name,omitempty"`
	Instructions         *string   `json:"instructions,omitempty"`
	Voice                *string   `json:"voice,omitempty"`
	Greeting             *string   `json:"greeting,omitempty"`
	LLMModel             *string   `json:"llm_model,omitempty"`
	STTModel             *string   `json:"stt_model,omitempty"`
	TTSModel             *string   `json:"tts_model,omitempty"`
	EnabledTools         *[]string `json:"enabled_tools,omitempty"`
	IsPublic             *bool     `json:"is_public,omitempty"`
	KnowledgeBaseEnabled *bool     `json:"knowledge_base_enabled,omitempty"`
}

// SharedAgentView is the public projection served for a share code.
// It never carries owner identity or provider credentials.
type SharedAgentView struct {
	AgentID   string `json:"agent_id"`
	Name      string `json:"name"`
	Voice     string `json:"voice"`
	Greeting  string `json:"greeting"`
	ShareCode string `json:"share_code"`
}

// ToolList is a jsonb-stored list of enabled tool names.
type ToolList []string

// Value implements driver.Valuer for ToolList
func (t ToolList) Value() (driver.Value, error) {
	if len(t) == 0 {
		return nil, nil
	}
	return json.Marshal(t)
}

// Scan implements sql.Scanner for ToolList
func (t *ToolList) Scan(value interface{}) error {
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
		return fmt.Errorf("cannot scan %T into ToolList", value)
	}

	return json.Unmarshal(bytes, t)
}

// shareCodeAlphabet excludes ambiguous characters (0/O, 1/l/I).
const shareCodeAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

// ShareCodeLength is the fixed length of generated share codes.
const ShareCodeLength = 10

// GenerateShareCode returns a new random share code. Issued when an agent
// becomes public; stable until sharing is disabled.
func GenerateShareCode() (string, error) {
	code := make([]byte, ShareCodeLength)
	max := big.NewInt(int64(len(shareCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate share code: %w", err)
		}
		code[i] = shareCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

// ApplyDefaults fills unset optional fields on a create request.
func (r *CreateAgentConfigRequest) ApplyDefaults() {
	if r.Voice == "" {
		r.Voice = DefaultVoice
	}
	if r.Greeting == "" {
		r.Greeting = DefaultGreeting
	}
	if r.LLMModel == "" {
		r.LLMModel = DefaultLLMModel
	}
	if r.STTModel == "" {
		r.STTModel = DefaultSTTModel
	}
	if r.TTSModel == "" {
		r.TTSModel = DefaultTTSModel
	}
}
