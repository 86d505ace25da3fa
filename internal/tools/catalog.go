package tools

// Tool names referenced by agent configs and the worker's function-call
// dispatch. Names are part of the stored config, do not rename.
const (
	ToolEndCall         = "end_call"
	ToolWebSearch       = "web_search"
	ToolCalendarRead    = "calendar_read"
	ToolCalendarCreate  = "calendar_create"
	ToolKnowledgeLookup = "knowledge_lookup"
)

// Definition describes one tool the voice agent can call.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`

	// RequiresOAuth marks tools that only work with a connected Google
	// account.
	RequiresOAuth bool `json:"requires_oauth,omitempty"`

	// RequiresKnowledgeBase marks tools that need the agent's knowledge
	// base enabled.
	RequiresKnowledgeBase bool `json:"requires_knowledge_base,omitempty"`
}

// AgentTool is a catalog entry annotated with per-agent state.
type AgentTool struct {
	Definition
	Enabled   bool `json:"enabled"`
	Available bool `json:"available"`
}

// Catalog returns all tools the platform supports.
func Catalog() []Definition {
	return []Definition{
		{
			Name:        ToolEndCall,
			Description: "End the current call when the conversation is complete",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reason": map[string]interface{}{
						"type":        "string",
						"description": "Why the call is ending",
					},
				},
			},
		},
		{
			Name:        ToolWebSearch,
			Description: "Search the web for current information",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Search query",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:          ToolCalendarRead,
			Description:   "List upcoming events from the owner's calendar",
			RequiresOAuth: true,
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"days_ahead": map[string]interface{}{
						"type":        "integer",
						"description": "How many days ahead to look, default 7",
					},
				},
			},
		},
		{
			Name:          ToolCalendarCreate,
			Description:   "Create an event on the owner's calendar",
			RequiresOAuth: true,
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Event title",
					},
					"start": map[string]interface{}{
						"type":        "string",
						"description": "Start time, RFC 3339",
					},
					"end": map[string]interface{}{
						"type":        "string",
						"description": "End time, RFC 3339",
					},
				},
				"required": []string{"title", "start", "end"},
			},
		},
		{
			Name:                  ToolKnowledgeLookup,
			Description:           "Look up answers in the agent's knowledge base",
			RequiresKnowledgeBase: true,
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "What to look up",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// ForAgent annotates the catalog with an agent's enabled set and the
// account's capability state.
func ForAgent(enabled []string, oauthConnected, knowledgeBaseEnabled bool) []AgentTool {
	enabledSet := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		enabledSet[name] = true
	}

	catalog := Catalog()
	out := make([]AgentTool, 0, len(catalog))
	for _, def := range catalog {
		available := true
		if def.RequiresOAuth && !oauthConnected {
			available = false
		}
		if def.RequiresKnowledgeBase && !knowledgeBaseEnabled {
			available = false
		}

		out = append(out, AgentTool{
			Definition: def,
			Enabled:    enabledSet[def.Name] && available,
			Available:  available,
		})
	}

	return out
}

// Valid reports whether a tool name exists in the catalog.
func Valid(name string) bool {
	for _, def := range Catalog() {
		if def.Name == name {
			return true
		}
	}
	return false
}
