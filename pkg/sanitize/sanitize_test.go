package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean text untouched",
			input: "How do I reset my password?",
			want:  "How do I reset my password?",
		},
		{
			name:  "script block removed",
			input: `before <script>alert("x")</script> after`,
			want:  "before  after",
		},
		{
			name:  "script block with attributes removed",
			input: `<script type="text/javascript">steal()</script>hello`,
			want:  "hello",
		},
		{
			name:  "multiline script block removed",
			input: "a<script>\nline1\nline2\n</script>b",
			want:  "ab",
		},
		{
			name:  "javascript uri stripped",
			input: `click javascript:alert(1) here`,
			want:  "click alert(1) here",
		},
		{
			name:  "javascript uri with spacing stripped",
			input: `JaVaScRiPt : alert(1)`,
			want:  "alert(1)",
		},
		{
			name:  "inline event handler stripped",
			input: `<img src=x onerror=alert(1)>`,
			want:  "<img src=x alert(1)>",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  hello  ",
			want:  "hello",
		},
		{
			name:  "split javascript uri cannot reconstruct",
			input: "jjavascript:avascript:alert(1)",
			want:  "alert(1)",
		},
		{
			name:  "nested script blocks cannot reconstruct",
			input: "<scr<script>x</script>ipt>alert(1)</scr<script>y</script>ipt>",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.input))
		})
	}
}

// Sanitizing already-sanitized text must be a no-op.
func TestMessageIdempotent(t *testing.T) {
	inputs := []string{
		`before <script>alert("x")</script> after`,
		`click javascript:alert(1) here`,
		`<img src=x onerror=alert(1)>`,
		`mixed <script>a</script> javascript:b onclick= c`,
		"plain text",
		// Inputs whose first pass splices a fresh denylisted substring.
		"jjavascript:avascript:alert(1)",
		"<scr<script>x</script>ipt>alert(1)</scr<script>y</script>ipt>",
	}

	for _, in := range inputs {
		once := Message(in)
		twice := Message(once)
		assert.Equal(t, once, twice, "input %q", in)
	}
}
