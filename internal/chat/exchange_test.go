// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jeranaias/ollama-chat/internal/ollama"
)

type fakeCompleter struct {
	body json.RawMessage
	err  error
	got  ollama.ChatRequest
}

func (f *fakeCompleter) Chat(_ context.Context, req ollama.ChatRequest) (json.RawMessage, error) {
	f.got = req
	return f.body, f.err
}

func TestExchange_MarshalsResultToOwner(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := newTestSession(t)
	require.NoError(t, s.AppendUserMessage("Hello"))
	req, err := s.BuildRequest()
	require.NoError(t, err)

	fc := &fakeCompleter{body: json.RawMessage(`{"message":{"content":"Hi there"}}`)}
	results := make(chan Result, 1)
	go func() {
		results <- Exchange(context.Background(), fc, s.ID, req)
	}()

	res := <-results
	reply, err := s.Complete(res)
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)
	assert.Equal(t, "llama3:8b", fc.got.Model)
	assert.False(t, s.IsGenerating())
	assert.Equal(t, 2, s.Len())
}

func TestComplete_Error(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.AppendUserMessage("Hello"))
	req, err := s.BuildRequest()
	require.NoError(t, err)

	cause := &ollama.HTTPError{StatusCode: 500, Message: "out of memory"}
	res := Exchange(context.Background(), &fakeCompleter{err: cause}, s.ID, req)

	_, err = s.Complete(res)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "Error: 500 - out of memory", s.Notice())
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.IsGenerating())
}

func TestComplete_StaleResult(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.AppendUserMessage("Hello"))

	_, err := s.Complete(Result{SessionID: "someone-else", Body: json.RawMessage(`{"message":{"content":"x"}}`)})
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.Equal(t, 1, s.Len())
}

func TestCatalog_Resolve(t *testing.T) {
	cat := NewCatalog([]ollama.ModelInfo{{Name: "llama3:8b"}, {Name: ""}, {Name: "mistral:7b"}})
	assert.Equal(t, []string{"llama3:8b", "mistral:7b"}, cat.Names())

	got, err := cat.Resolve("mistral:7b")
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", got)

	_, err = cat.Resolve("phi3")
	assert.ErrorIs(t, err, ErrNoModelSelected)
	assert.Contains(t, err.Error(), "llama3:8b, mistral:7b")

	_, err = cat.Resolve("")
	assert.ErrorIs(t, err, ErrNoModelSelected)

	_, err = NewCatalog(nil).Resolve("llama3:8b")
	assert.ErrorIs(t, err, ErrNoModelSelected)
}
