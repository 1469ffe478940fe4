package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

func TestParseCommands(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		op   Op
		lang workspace.Language
	}{
		{"static py", OpStatic, workspace.LangPy},
		{"please run static analysis on py", OpStatic, workspace.LangPy},
		{"dynamic py", OpDynamic, workspace.LangPy},
		{"static cpp", OpStatic, workspace.LangCpp},
		{"dynamic cpp", OpDynamic, workspace.LangCpp},
		{"patch py", OpPatch, workspace.LangPy},
		{"patch cpp", OpPatch, workspace.LangCpp},
		{"auto_fix py", OpAutoFix, workspace.LangPy},
		{"compare patch", OpComparePatch, ""},
		{"Compare the PATCH results", OpComparePatch, ""},
	}

	for _, tc := range cases {
		intent := Parse(tc.in)
		if assert.Equal(t, KindCommand, intent.Kind, "input %q", tc.in) {
			assert.Equal(t, tc.op, intent.Command.Op, "input %q", tc.in)
			assert.Equal(t, tc.lang, intent.Command.Lang, "input %q", tc.in)
		}
	}
}

func TestParseChat(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"hello", "Hello! 👋 Ready to analyze your code."},
		{"hi there", "Hello! 👋 Ready to analyze your code."},
		{"how are you?", "I'm great! Let's fix some code today 😄"},
		{"bye", "Goodbye! 👋"},
	}

	for _, tc := range cases {
		intent := Parse(tc.in)
		assert.Equal(t, KindChat, intent.Kind, "input %q", tc.in)
		assert.Equal(t, tc.want, intent.Reply, "input %q", tc.in)
	}
}

func TestParseChatBeatsCommand(t *testing.T) {
	t.Parallel()

	// A greeting wins even when the message also matches a grammar rule.
	intent := Parse("hi, static py please")
	assert.Equal(t, KindChat, intent.Kind)
	assert.Equal(t, replyGreeting, intent.Reply)

	intent = Parse("bye, run dynamic cpp later")
	assert.Equal(t, KindChat, intent.Kind)
	assert.Equal(t, replyFarewell, intent.Reply)
}

func TestParseUnknownGetsUsageHint(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "make it faster", "auto_fix cpp"} {
		intent := Parse(in)
		assert.Equal(t, KindUnknown, intent.Kind, "input %q", in)
		assert.Contains(t, intent.Reply, "Unknown command", "input %q", in)
	}
}
