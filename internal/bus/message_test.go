package bus

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	t.Parallel()

	fields := map[string]any{"slug": "weather", "method": "ignored"}
	msg := NewMessage(MethodLoad, fields)

	assert.Equal(t, MethodLoad, msg.Method())
	assert.Equal(t, "weather", msg.String("slug"))
	assert.Equal(t, "ignored", fields["method"], "input map must not be modified")
}

func TestMessage_String(t *testing.T) {
	t.Parallel()

	msg := Message{"n": 3, "s": "x"}
	assert.Equal(t, "x", msg.String("s"))
	assert.Empty(t, msg.String("n"))
	assert.Empty(t, msg.String("absent"))
	assert.Empty(t, Message{}.Method())
}

func TestMessage_Decode(t *testing.T) {
	t.Parallel()

	var out struct {
		Method string   `json:"method"`
		Items  []string `json:"items"`
	}
	msg := Message{"method": "push", "items": []any{"a", "b"}}
	require.NoError(t, msg.Decode(&out))
	assert.Equal(t, "push", out.Method)
	assert.Equal(t, []string{"a", "b"}, out.Items)
}

func TestReply_Bool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		reply    Reply
		expected bool
	}{
		{name: "true payload", reply: Reply{Payload: json.RawMessage("true")}, expected: true},
		{name: "false payload", reply: Reply{Payload: json.RawMessage("false")}},
		{name: "non-bool payload", reply: Reply{Payload: json.RawMessage(`"true"`)}},
		{name: "empty payload", reply: Reply{}},
		{name: "error", reply: Reply{Payload: json.RawMessage("true"), Err: errors.New("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.reply.Bool())
		})
	}
}

func TestReply_Decode(t *testing.T) {
	t.Parallel()

	var n int
	require.NoError(t, Reply{Payload: json.RawMessage("42")}.Decode(&n))
	assert.Equal(t, 42, n)

	err := Reply{Err: ErrNoResponse}.Decode(&n)
	require.ErrorIs(t, err, ErrNoResponse)

	err = Reply{Payload: json.RawMessage("{")}.Decode(&n)
	require.Error(t, err)
}

func TestMethodIs(t *testing.T) {
	t.Parallel()

	match := MethodIs(MethodPush)
	assert.True(t, match(Message{"method": "push"}))
	assert.False(t, match(Message{"method": "load"}))
	assert.False(t, match(Message{}))
}
