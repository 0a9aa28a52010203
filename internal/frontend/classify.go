package frontend

import "strings"

// Classification is the first-pass bucket a raw input line falls into,
// before any process (probe or otherwise) is consulted.
type Classification int

const (
	// ClassEmpty is a blank or whitespace-only line: reprompt, no dispatch.
	ClassEmpty Classification = iota
	// ClassBuiltin is a shell built-in the front end must handle itself
	// because it mutates front-end-local state (cwd, the REPL loop) that
	// no child process can see — probing it would be a no-op at best and
	// a lie at worst.
	ClassBuiltin
	// ClassControl is a reserved-prefix control command (help/status/
	// verbosity/provider/history); it never touches a socket.
	ClassControl
	// ClassStructuralTTY is a program that always demands a real terminal
	// (editors, pagers, remote login, REPLs, elevated-privilege entry).
	ClassStructuralTTY
	// ClassOther is everything else: route through the probe.
	ClassOther
)

// controlPrefix marks a reserved control command, grounded on the
// teacher's "/exit", "/help", "/history" chat-mode command namespace.
const controlPrefix = "/"

// builtinPrograms are shell built-ins handled entirely within the front
// end process rather than probed or executed as a child.
var builtinPrograms = map[string]bool{
	"cd":   true,
	"exit": true,
	"quit": true,
}

// structuralOverridePrograms always demand a TTY and skip the probe
// entirely (spec §4.4 step 1). Carried over from the command-policy
// maps originally attached to direct execution; that enforcement now
// lives only in internal/middleware, but this classification set is the
// legitimate front-end use of the same program list.
var structuralOverridePrograms = map[string]bool{
	"sudo":                      true,
	"vi":                        true,
	"vim":                       true,
	"nano":                      true,
	"emacs":                     true,
	"less":                      true,
	"more":                      true,
	"ssh":                       true,
	"ftp":                       true,
	"telnet":                    true,
	"mysql_secure_installation": true,
	"passwd":                    true,
}

// Classified is the result of classifying one raw input line.
type Classified struct {
	Kind        Classification
	Line        string
	Tokens      []string
	ControlName string   // lowercased, prefix stripped; only set for ClassControl
	ControlArgs []string // only set for ClassControl
}

// Classify buckets a raw input line per spec §4.4's decision order:
// control commands and built-ins are recognized first (the REPL hands
// every line to Dispatcher.Dispatch, which calls Classify, and an
// AI-suggested command re-dispatched through it can legally name any of
// these), then the structural-override set, then everything else falls
// through to the probe.
func Classify(line string) Classified {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Classified{Kind: ClassEmpty}
	}
	tokens := strings.Fields(trimmed)

	if strings.HasPrefix(trimmed, controlPrefix) {
		name := strings.ToLower(strings.TrimPrefix(tokens[0], controlPrefix))
		return Classified{
			Kind:        ClassControl,
			Line:        trimmed,
			Tokens:      tokens,
			ControlName: name,
			ControlArgs: tokens[1:],
		}
	}

	if builtinPrograms[tokens[0]] {
		return Classified{Kind: ClassBuiltin, Line: trimmed, Tokens: tokens}
	}

	if structuralOverridePrograms[tokens[0]] {
		return Classified{Kind: ClassStructuralTTY, Line: trimmed, Tokens: tokens}
	}

	return Classified{Kind: ClassOther, Line: trimmed, Tokens: tokens}
}

// MeetsMinimumWordRule reports whether tokens has enough words to justify
// an AI call (spec §4.4 step 4: "at least three whitespace-separated
// tokens"), avoiding wasted AI calls on typos.
func MeetsMinimumWordRule(tokens []string) bool {
	return len(tokens) >= 3
}
