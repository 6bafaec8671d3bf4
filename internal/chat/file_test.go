// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize_Schema(t *testing.T) {
	s := NewSession(GenerationConfig{Model: "llama3:8b", Temperature: 0.3, MaxTokens: 64, SystemPrompt: "sys"})
	s.Title = "Trip plans"
	require.NoError(t, s.AppendUserMessage("Hello"))

	blob, err := s.Serialize()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(blob, &raw))
	for _, key := range []string{"title", "model", "timestamp", "system_prompt", "messages", "app_version"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "Trip plans", raw["title"])
	assert.Equal(t, AppVersion, raw["app_version"])

	_, err = time.Parse(time.RFC3339, raw["timestamp"].(string))
	assert.NoError(t, err)
}

func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	s := NewSession(GenerationConfig{Model: "llama3:8b", Temperature: 0.3, MaxTokens: 64, SystemPrompt: "sys"})
	require.NoError(t, s.AppendUserMessage("Hello"))
	_, err := s.BuildRequest()
	require.NoError(t, err)
	_, err = s.ApplyResponse([]byte(`{"message":{"content":"Hi"}}`))
	require.NoError(t, err)

	blob, err := s.Serialize()
	require.NoError(t, err)

	loaded, err := Deserialize(blob, DefaultGenerationConfig())
	require.NoError(t, err)

	assert.Equal(t, s.History(), loaded.History())
	assert.Equal(t, s.Config(), loaded.Config())
	assert.NotEqual(t, s.ID, loaded.ID)
	assert.False(t, loaded.IsGenerating())
}

func TestDeserialize_MinimalAndUnknownFields(t *testing.T) {
	blob := []byte(`{"messages":[{"role":"user","content":"hi"}],"theme":"dark","window":{"w":800}}`)

	s, err := Deserialize(blob, GenerationConfig{Model: "fallback", Temperature: 0.7, MaxTokens: 1024})
	require.NoError(t, err)

	assert.Equal(t, DefaultTitle, s.Title)
	assert.Equal(t, "fallback", s.Config().Model)
	assert.Equal(t, "", s.Config().SystemPrompt)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, s.History())
}

func TestDeserialize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{"missing messages", `{"title":"x","model":"m"}`},
		{"not json", `hello`},
		{"messages wrong type", `{"messages":"hi"}`},
		{"unknown role", `{"messages":[{"role":"tool","content":"x"}]}`},
		{"missing role", `{"messages":[{"content":"hi"}]}`},
		{"empty role", `{"messages":[{"role":"","content":"hi"}]}`},
		{"null messages", `{"messages":null}`},
		{"messages object", `{"messages":{"role":"user"}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tc.blob), DefaultGenerationConfig())
			assert.ErrorIs(t, err, ErrInvalidChatFile)
		})
	}
}

func TestTimestamp_ZonelessISO(t *testing.T) {
	f, err := ParseFile([]byte(`{"timestamp":"2024-03-01T14:05:09.123456","messages":[]}`))
	require.NoError(t, err)

	ts := time.Time(f.Timestamp)
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, time.March, ts.Month())
	assert.Equal(t, 5, ts.Minute())
}

func TestTimestamp_Garbage(t *testing.T) {
	f, err := ParseFile([]byte(`{"timestamp":"yesterday","messages":[]}`))
	require.NoError(t, err)
	assert.True(t, time.Time(f.Timestamp).IsZero())
}

func TestDeserialize_IgnoresOutOfRangeParameters(t *testing.T) {
	s, err := Deserialize([]byte(`{"messages":[],"temperature":5,"max_tokens":-1}`), DefaultGenerationConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, s.Config().Temperature)
	assert.Equal(t, DefaultMaxTokens, s.Config().MaxTokens)
}

func TestDefaultFileName(t *testing.T) {
	got := DefaultFileName(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "ollama_chat_20240102_030405.json", got)
}
