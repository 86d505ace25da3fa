package domain

import "time"

// KnowledgeDocument records one uploaded document that has been indexed
// into the agent's retrieval pipeline.
type KnowledgeDocument struct {
	ID           string      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AgentID      string      `json:"agent_id" gorm:"type:uuid;not null;index"`
	Agent        AgentConfig `json:"-" gorm:"foreignKey:AgentID;references:id"`
	Name         string      `json:"name" gorm:"type:varchar(512);not null"`
	ContentType  string      `json:"content_type" gorm:"type:varchar(128)"`
	SizeBytes    int64       `json:"size_bytes"`
	ChunkCount   int         `json:"chunk_count"`
	VendorFileID string      `json:"vendor_file_id" gorm:"type:varchar(255)"`
	StorageURI   string      `json:"storage_uri" gorm:"type:varchar(1024)"`
	CreatedAt    time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for KnowledgeDocument
func (KnowledgeDocument) TableName() string {
	return "knowledge_documents"
}

// KnowledgeQueryRequest is a similarity-search query against an agent's pipeline.
type KnowledgeQueryRequest struct {
	Query string `json:"query" validate:"required"`
	TopK  int    `json:"top_k,omitempty"`
}

// KnowledgeChunk is one retrieved passage with its relevance score.
type KnowledgeChunk struct {
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	Document string  `json:"document,omitempty"`
}
