package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cortex/pkg/domain-errors"
)

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(Config{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUpstreamConfig))
}

func TestNew_BaseURLOnlyIsEnough(t *testing.T) {
	// Self-hosted OpenAI-compatible endpoints often need no API key.
	c, err := New(Config{BaseURL: "http://localhost:8000/v1", Model: "local"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.timeout)
}

func TestNew_CustomTimeout(t *testing.T) {
	c, err := New(Config{APIKey: "sk-test", Model: "gpt-4o-mini", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.timeout)
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Run("no context", func(t *testing.T) {
		assert.Equal(t, PersonaPreamble, buildSystemPrompt(""))
	})

	t.Run("with context", func(t *testing.T) {
		prompt := buildSystemPrompt("## Notes\nremember the thing")
		assert.True(t, strings.HasPrefix(prompt, PersonaPreamble))
		assert.Contains(t, prompt, "# Knowledge base context")
		assert.Contains(t, prompt, "remember the thing")
	})
}
