package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "cortex/pkg/domain"
)

func validRequest(message string) ChatMessageRequest {
	return ChatMessageRequest{
		Message: message,
		ChatID:  "b7f6ad2e-59d8-4f0a-9c55-1f18282e2a10",
	}
}

func TestValidate_LengthBoundary(t *testing.T) {
	// Exactly 4000 runes passes; 4001 fails.
	req := validRequest(strings.Repeat("a", 4000))
	assert.NoError(t, req.Validate())

	req = validRequest(strings.Repeat("a", 4001))
	err := req.Validate()
	require.Error(t, err)
	assert.Equal(t, "Message is too long. Maximum 4000 characters allowed.", err.Error())
}

func TestValidate_LengthCountsRunesNotBytes(t *testing.T) {
	// 4000 multibyte runes are within the cap even though the byte length is larger.
	req := validRequest(strings.Repeat("日", 4000))
	assert.NoError(t, req.Validate())
}

func TestValidate_EmptyMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"empty", ""},
		{"whitespace only", "   \t\n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(tt.message)
			req.Sanitize()
			err := req.Validate()
			require.Error(t, err)
			assert.Equal(t, "Message is required and cannot be empty", err.Error())
		})
	}
}

func TestValidate_ChatID(t *testing.T) {
	tests := []struct {
		name   string
		chatID string
	}{
		{"missing", ""},
		{"not a uuid", "chat-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := ChatMessageRequest{Message: "hello", ChatID: tt.chatID}
			err := req.Validate()
			require.Error(t, err)
			assert.Equal(t, "Valid chat ID is required", err.Error())
		})
	}
}

func TestSanitize_StripsScriptPatterns(t *testing.T) {
	req := validRequest(`hello <script>alert(1)</script> world onclick=evil() javascript:boom`)
	req.Sanitize()
	assert.NotContains(t, req.Message, "<script")
	assert.NotContains(t, req.Message, "onclick=")
	assert.NotContains(t, req.Message, "javascript:")
	assert.Contains(t, req.Message, "hello")
}

func TestSanitize_Idempotent(t *testing.T) {
	req := validRequest(`x <script>a</script> onload= javascript:y`)
	req.Sanitize()
	once := req.Message
	req.Sanitize()
	assert.Equal(t, once, req.Message)
}

func TestExchangeMessages(t *testing.T) {
	chatID := id.NewChatID()
	now := time.Now()

	t.Run("completed flattens to two rows in order", func(t *testing.T) {
		ex := NewCompletedExchange(chatID, "Hello", "Hi there", now)
		msgs := ex.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, RoleUser, msgs[0].Role)
		assert.Equal(t, "Hello", msgs[0].Content)
		assert.Equal(t, RoleAssistant, msgs[1].Role)
		assert.Equal(t, "Hi there", msgs[1].Content)
	})

	t.Run("failed flattens to the user row only", func(t *testing.T) {
		ex := NewFailedExchange(chatID, "Hello", "upstream timed out", now)
		msgs := ex.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, RoleUser, msgs[0].Role)
		assert.Equal(t, ExchangeFailed, ex.Status)
		assert.Equal(t, "upstream timed out", ex.FailureReason)
		assert.Empty(t, ex.AssistantMessage)
	})
}
