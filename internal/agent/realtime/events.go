package realtime

import "encoding/json"

// Server event types the session loop reacts to. Anything else is passed
// through to the raw event handler.
const (
	EventSessionCreated       = "session.created"
	EventResponseDone         = "response.done"
	EventFunctionCallDone     = "response.function_call_arguments.done"
	EventAgentTranscriptDone  = "response.audio_transcript.done"
	EventCallerTranscriptDone = "conversation.item.input_audio_transcription.completed"
	EventError                = "error"
)

// ServerEvent is one event received on the data channel. Fields beyond Type
// are populated per event type; Raw always carries the full payload.
type ServerEvent struct {
	Type       string          `json:"type"`
	EventID    string          `json:"event_id,omitempty"`
	CallID     string          `json:"call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Arguments  string          `json:"arguments,omitempty"`
	Transcript string          `json:"transcript,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// ParseServerEvent decodes a data channel message.
func ParseServerEvent(data []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	event.Raw = json.RawMessage(data)
	return &event, nil
}

// SessionUpdate configures the realtime session after connect.
func SessionUpdate(instructions, voice string, tools []interface{}) map[string]interface{} {
	session := map[string]interface{}{
		"instructions": instructions,
		"voice":        voice,
		"modalities":   []string{"audio", "text"},
		"input_audio_transcription": map[string]interface{}{
			"model": "whisper-1",
		},
		"turn_detection": map[string]interface{}{
			"type": "server_vad",
		},
	}
	if len(tools) > 0 {
		session["tools"] = tools
		session["tool_choice"] = "auto"
	}
	return map[string]interface{}{
		"type":    "session.update",
		"session": session,
	}
}

// ResponseCreate asks the model to speak, optionally with one-off
// instructions such as the greeting.
func ResponseCreate(instructions string) map[string]interface{} {
	event := map[string]interface{}{
		"type":     "response.create",
		"response": map[string]interface{}{},
	}
	if instructions != "" {
		event["response"] = map[string]interface{}{
			"instructions": instructions,
		}
	}
	return event
}

// FunctionOutput returns a tool result to the model and requests a
// follow-up response.
func FunctionOutput(callID, output string) []map[string]interface{} {
	return []map[string]interface{}{
		{
			"type": "conversation.item.create",
			"item": map[string]interface{}{
				"type":    "function_call_output",
				"call_id": callID,
				"output":  output,
			},
		},
		{
			"type": "response.create",
		},
	}
}
