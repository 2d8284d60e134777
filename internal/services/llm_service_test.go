// internal/services/llm_service_test.go
package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanLLMJSONResponse_StripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"action\": \"modify\", \"target_name\": \"Elena Cross\"}\n```"

	cleaned := CleanLLMJSONResponse(raw)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cleaned), &out))
	assert.Equal(t, "modify", out["action"])
}

func TestCleanLLMJSONResponse_DropsLeadingProse(t *testing.T) {
	raw := "Sure, here is the change you asked for:\n{\"action\": \"add\"} trailing words"

	cleaned := CleanLLMJSONResponse(raw)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cleaned), &out))
	assert.Equal(t, "add", out["action"])
}

func TestCleanLLMJSONResponse_NormalizesFullWidthPunctuation(t *testing.T) {
	raw := "{\"action\"：\"remove\"，\"target_name\"：\"Rusty Cafe\"}"

	cleaned := CleanLLMJSONResponse(raw)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cleaned), &out))
	assert.Equal(t, "remove", out["action"])
	assert.Equal(t, "Rusty Cafe", out["target_name"])
}

func TestCleanLLMJSONResponse_HandlesArrays(t *testing.T) {
	raw := "Result:\n[{\"scene_number\": 1}, {\"scene_number\": 2}]\nDone."

	cleaned := CleanLLMJSONResponse(raw)

	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cleaned), &out))
	require.Len(t, out, 2)
}

func TestCleanLLMJSONResponse_RemovesZeroWidthCharacters(t *testing.T) {
	raw := "{\"action\": \"mod​ify\"}"

	cleaned := CleanLLMJSONResponse(raw)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cleaned), &out))
	assert.Equal(t, "modify", out["action"])
}

func TestNewEmptyLLMService(t *testing.T) {
	svc := NewEmptyLLMService()

	assert.False(t, svc.IsReady())
	ready, state := svc.GetProviderStatus()
	assert.False(t, ready)
	assert.NotEmpty(t, state)
}
