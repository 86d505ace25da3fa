package domain

// ResolvedAgent is the fully merged agent configuration serialized into
// LiveKit room metadata. The voice agent worker reads it at session start;
// it must stay self-contained so the worker never needs a DB connection.
type ResolvedAgent struct {
	AgentID              string   `json:"agent_id"`
	OwnerID              string   `json:"owner_id"`
	Name                 string   `json:"name"`
	Instructions         string   `json:"instructions"`
	Voice                string   `json:"voice"`
	Greeting             string   `json:"greeting"`
	LLMModel             string   `json:"llm_model"`
	STTModel             string   `json:"stt_model"`
	TTSModel             string   `json:"tts_model"`
	EnabledTools         []string `json:"enabled_tools,omitempty"`
	KnowledgeBaseEnabled bool     `json:"knowledge_base_enabled"`
	Direction            string   `json:"direction"`
	CallID               string   `json:"call_id,omitempty"`
}
