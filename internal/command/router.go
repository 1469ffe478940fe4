package command

import (
	"strings"

	"github.com/Pelix05/Code-Agent-Project/internal/workspace"
)

// Op is a pipeline operation requestable through the chat surface.
type Op string

const (
	OpStatic       Op = "static"
	OpDynamic      Op = "dynamic"
	OpPatch        Op = "patch"
	OpAutoFix      Op = "auto_fix"
	OpComparePatch Op = "compare_patch"
)

// Command is a fully resolved operator request. ComparePatch carries no
// language; it always targets the current workspace.
type Command struct {
	Op   Op
	Lang workspace.Language
}

// Kind classifies a parsed message.
type Kind int

const (
	// KindCommand means the message matched the command grammar.
	KindCommand Kind = iota
	// KindChat means the message was conversational small talk.
	KindChat
	// KindUnknown means nothing matched; the reply is the usage hint.
	KindUnknown
)

// Intent is the routing decision for one message.
type Intent struct {
	Kind    Kind
	Command Command
	Reply   string
}

// Canned chat replies.
const (
	replyGreeting = "Hello! 👋 Ready to analyze your code."
	replyMood     = "I'm great! Let's fix some code today 😄"
	replyFarewell = "Goodbye! 👋"

	// ReplyNoWorkspace is sent when a command arrives before any upload.
	ReplyNoWorkspace = "⚠️ Please upload a file before running commands."

	replyHelp = "❓ Unknown command. Try: static py | dynamic py | patch py | auto_fix py | compare patch | static cpp | dynamic cpp"
)

// grammar is the closed set of recognized commands. A message matches a rule
// when it contains every needle; rules are tried in order and the first match
// wins.
var grammar = []struct {
	needles []string
	cmd     Command
}{
	{[]string{"static", "py"}, Command{Op: OpStatic, Lang: workspace.LangPy}},
	{[]string{"dynamic", "py"}, Command{Op: OpDynamic, Lang: workspace.LangPy}},
	{[]string{"static", "cpp"}, Command{Op: OpStatic, Lang: workspace.LangCpp}},
	{[]string{"dynamic", "cpp"}, Command{Op: OpDynamic, Lang: workspace.LangCpp}},
	{[]string{"patch", "py"}, Command{Op: OpPatch, Lang: workspace.LangPy}},
	{[]string{"patch", "cpp"}, Command{Op: OpPatch, Lang: workspace.LangCpp}},
	{[]string{"auto_fix", "py"}, Command{Op: OpAutoFix, Lang: workspace.LangPy}},
	{[]string{"compare", "patch"}, Command{Op: OpComparePatch}},
}

// Parse routes one chat message. Conversational intents are matched before
// the grammar and keep precedence even when the message also names a command.
func Parse(text string) Intent {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return Intent{Kind: KindUnknown, Reply: replyHelp}
	}

	switch {
	case strings.Contains(msg, "hello") || strings.Contains(msg, "hi"):
		return Intent{Kind: KindChat, Reply: replyGreeting}
	case strings.Contains(msg, "how are you"):
		return Intent{Kind: KindChat, Reply: replyMood}
	case strings.Contains(msg, "bye"):
		return Intent{Kind: KindChat, Reply: replyFarewell}
	}

	for _, rule := range grammar {
		if containsAll(msg, rule.needles) {
			return Intent{Kind: KindCommand, Command: rule.cmd}
		}
	}

	return Intent{Kind: KindUnknown, Reply: replyHelp}
}

func containsAll(msg string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(msg, n) {
			return false
		}
	}
	return true
}
