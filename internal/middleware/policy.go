// Package middleware implements the transparent security proxy sitting
// between the front end and the backend: policy.go holds the fixed
// pattern-class predicate, proxy.go the relay itself.
package middleware

import (
	"fmt"
	"regexp"

	"github.com/aiq/coshell/internal/audit"
)

// Verdict is the result of evaluating a command or reply against policy.
type Verdict struct {
	Allowed bool
	Class   string // matched pattern class name, "" if Allowed
	Reason  string
}

// maxResponseBytes bounds how much of a backend reply the response
// policy will buffer before rejecting it outright as oversize.
const maxResponseBytes = 64 * 1024

// Policy evaluates commands and backend replies against the fixed list
// of pattern classes, plus any site-specific patterns layered onto those
// same classes from policy.yaml. It holds no per-request state, so a
// single Policy is safe for concurrent use.
type Policy struct {
	extraCommand []patternClass
}

// NewPolicy returns the policy with only the four built-in pattern
// classes active. The class set itself is fixed; this constructor has
// no configuration surface by design.
func NewPolicy() *Policy {
	return &Policy{}
}

// NewPolicyWithExtras returns a policy that also checks extra patterns
// against the named class they extend. Keys must name one of the four
// fixed command-policy classes (destructive-filesystem,
// privilege-escalation, credential-exposure, network-exfiltration); any
// other key is rejected rather than silently ignored, since a typo'd
// class name in an operator's policy.yaml should fail loudly.
func NewPolicyWithExtras(extra map[string][]string) (*Policy, error) {
	p := &Policy{}
	for name, patterns := range extra {
		if !isKnownCommandClass(name) {
			return nil, fmt.Errorf("middleware: policy.yaml: unknown pattern class %q", name)
		}
		for _, pattern := range patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("middleware: policy.yaml: class %q: %w", name, err)
			}
			p.extraCommand = append(p.extraCommand, patternClass{name: name, re: re})
		}
	}
	return p, nil
}

func isKnownCommandClass(name string) bool {
	for _, c := range commandClasses {
		if c.name == name {
			return true
		}
	}
	return false
}

type patternClass struct {
	name string
	re   *regexp.Regexp
}

// commandClasses implements the four pattern classes on the inbound
// command path. Order matters only for which Reason string a command
// matching more than one class gets back; the first match wins.
var commandClasses = []patternClass{
	{
		name: "destructive-filesystem",
		re: regexp.MustCompile(`(?i)\brm\s+(-\w*r\w*f\w*|-\w*f\w*r\w*)\s+(/\s|/\s*$|/\*|/etc|/usr|/bin|/boot|/var|~\s*$|~/\s*$)` +
			`|\bmkfs\b|\bdd\s+.*\bof=/dev/(sd|nvme|hd|vd)` +
			`|\b(shred|wipefs)\b.*\s/dev/`),
	},
	{
		name: "privilege-escalation",
		re: regexp.MustCompile(`(?i)\b(sudo|doas|su)\b.*\b(rm|chmod|chown|dd|mkfs|useradd|usermod|passwd|visudo)\b`),
	},
	{
		name: "credential-exposure",
		re: regexp.MustCompile(`(?i)\b(cat|less|more|head|tail|cp|mv)\b[^|&;]*\s(/etc/shadow|/etc/passwd|~?/\.ssh/id_\w+|~?/\.aws/credentials|~?/\.netrc)\b`),
	},
	{
		name: "network-exfiltration",
		re: regexp.MustCompile(`(?i)\b(cat|less|more|head|tail)\b[^|]*\s(/etc/shadow|/etc/passwd|~?/\.ssh/id_\w+|~?/\.aws/credentials)[^|]*\|\s*(curl|wget|nc|ncat|netcat|ssh)\b`),
	},
}

// secretClasses scans outbound backend replies for leaked secret
// material, the response-policy half of spec §5.
var secretClasses = []patternClass{
	{name: "credential-exposure", re: regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`)},
	{name: "credential-exposure", re: regexp.MustCompile(`(?i)\bAKIA[0-9A-Z]{16}\b`)},
	{name: "destructive-filesystem", re: regexp.MustCompile(`(?i)\brm\s+-rf\s+/\b`)},
}

// EvaluateCommand checks an inbound front-end command line. A command
// matching none of the fixed classes is allowed through to the backend
// unmodified.
func (p *Policy) EvaluateCommand(correlationID, command string) Verdict {
	for _, class := range commandClasses {
		if class.re.MatchString(command) {
			v := Verdict{Allowed: false, Class: class.name, Reason: class.name}
			p.record(correlationID, command, v)
			return v
		}
	}
	for _, class := range p.extraCommand {
		if class.re.MatchString(command) {
			v := Verdict{Allowed: false, Class: class.name, Reason: class.name}
			p.record(correlationID, command, v)
			return v
		}
	}
	v := Verdict{Allowed: true}
	p.record(correlationID, command, v)
	return v
}

// EvaluateResponse checks a complete (already fully buffered) backend
// reply body; only a blocked verdict is written to the audit log. The
// size limit is not checked here: callers check the body against
// ResponseExceedsLimit first, as Proxy.relay does.
func (p *Policy) EvaluateResponse(correlationID, body string) Verdict {
	for _, class := range secretClasses {
		if class.re.MatchString(body) {
			v := Verdict{Allowed: false, Class: class.name, Reason: class.name}
			p.record(correlationID, body, v)
			return v
		}
	}
	return Verdict{Allowed: true}
}

// ResponseExceedsLimit reports whether a backend reply body of n bytes
// has crossed maxResponseBytes, the trigger for rejecting it as
// `blocked:oversize`.
func ResponseExceedsLimit(n int) bool {
	return n > maxResponseBytes
}

func (p *Policy) record(correlationID, text string, v Verdict) {
	_ = audit.Record(audit.Entry{
		CorrelationID: correlationID,
		Command:       truncateForAudit(text),
		Class:         v.Class,
		Allowed:       v.Allowed,
		Reason:        v.Reason,
	})
}

func truncateForAudit(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
