package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServerEvent(t *testing.T) {
	payload := `{"type":"response.function_call_arguments.done","call_id":"fc_1","name":"end_call","arguments":"{\"reason\":\"done\"}"}`

	event, err := ParseServerEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, EventFunctionCallDone, event.Type)
	assert.Equal(t, "fc_1", event.CallID)
	assert.Equal(t, "end_call", event.Name)
	assert.JSONEq(t, payload, string(event.Raw))

	_, err = ParseServerEvent([]byte("not json"))
	assert.Error(t, err)
}

func TestSessionUpdate(t *testing.T) {
	toolDefs := []interface{}{
		map[string]interface{}{"type": "function", "name": "end_call"},
	}

	event := SessionUpdate("Be brief.", "alloy", toolDefs)
	assert.Equal(t, "session.update", event["type"])

	session := event["session"].(map[string]interface{})
	assert.Equal(t, "Be brief.", session["instructions"])
	assert.Equal(t, "alloy", session["voice"])
	assert.Equal(t, "auto", session["tool_choice"])

	// Without tools, no tool fields at all.
	event = SessionUpdate("Be brief.", "alloy", nil)
	session = event["session"].(map[string]interface{})
	_, hasTools := session["tools"]
	assert.False(t, hasTools)
}

func TestFunctionOutput_PairsWithResponseCreate(t *testing.T) {
	events := FunctionOutput("fc_1", "done")
	require.Len(t, events, 2)

	item := events[0]["item"].(map[string]interface{})
	assert.Equal(t, "fc_1", item["call_id"])
	assert.Equal(t, "done", item["output"])
	assert.Equal(t, "response.create", events[1]["type"])
}
