// Package errkind classifies a failed command's combined output into a
// small set of recognizable failure categories, so the front end can
// offer a targeted hint before falling back to the AI session.
package errkind

import (
	"regexp"
	"strings"
)

// Kind is a coarse category for why a shell command failed.
type Kind string

const (
	CommandNotFound    Kind = "command_not_found"
	PermissionDenied   Kind = "permission_denied"
	NoSuchFileOrDir    Kind = "no_such_file_or_directory"
	ConnectionRefused  Kind = "connection_refused"
	Timeout            Kind = "timeout"
	SignalDeath        Kind = "signal_death"
	Unknown            Kind = "unknown"
)

// Info is the structured result of classifying a failure.
type Info struct {
	Kind             Kind
	AffectedResource string // the file, host, or command name implicated, if extracted
	SuggestedAction  string
}

// Classify inspects a command's exit code and combined stdout+stderr and
// returns a best-effort categorization. exitCode of -1 means the process
// was killed by a signal rather than exiting normally.
func Classify(exitCode int, output string) Info {
	if exitCode == 0 {
		return Info{Kind: Unknown}
	}

	kind := categorize(exitCode, output)
	info := Info{Kind: kind}

	switch kind {
	case CommandNotFound:
		if name, found := extractCommandName(output); found {
			info.AffectedResource = name
			info.SuggestedAction = "check that the command is installed and on PATH"
		}
	case PermissionDenied:
		if path, found := extractQuotedOrPath(output); found {
			info.AffectedResource = path
		}
		info.SuggestedAction = "check file permissions or rerun with elevated privileges"
	case NoSuchFileOrDir:
		if path, found := extractQuotedOrPath(output); found {
			info.AffectedResource = path
		}
		info.SuggestedAction = "verify the path exists and is spelled correctly"
	case ConnectionRefused:
		if host, found := extractHostPort(output); found {
			info.AffectedResource = host
		}
		info.SuggestedAction = "check that the remote service is running and reachable"
	case Timeout:
		info.SuggestedAction = "the command may need more time, or is waiting on input"
	case SignalDeath:
		info.SuggestedAction = "the command was killed by a signal, check for resource limits"
	}

	return info
}

func categorize(exitCode int, output string) Kind {
	lower := strings.ToLower(output)

	if exitCode == -1 {
		return SignalDeath
	}
	if exitCode == 127 || strings.Contains(lower, "command not found") || strings.Contains(lower, ": not found") {
		return CommandNotFound
	}
	if strings.Contains(lower, "permission denied") {
		return PermissionDenied
	}
	if strings.Contains(lower, "no such file or directory") {
		return NoSuchFileOrDir
	}
	if strings.Contains(lower, "connection refused") {
		return ConnectionRefused
	}
	if strings.Contains(lower, "timed out") || strings.Contains(lower, "timeout") {
		return Timeout
	}
	return Unknown
}

var reCommandName = regexp.MustCompile(`(?i)([^\s:]+):\s*command not found`)

func extractCommandName(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		if m := reCommandName.FindStringSubmatch(line); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}

var reQuotedPath = regexp.MustCompile(`['"]([^'"]+)['"]`)

func extractQuotedOrPath(output string) (string, bool) {
	if m := reQuotedPath.FindStringSubmatch(output); len(m) > 1 {
		return m[1], true
	}
	// Fall back to the stdlib-style "open PATH:" prefix coreutils use.
	re := regexp.MustCompile(`(?:open|stat|cannot access)\s+([^\s:]+)`)
	if m := re.FindStringSubmatch(output); len(m) > 1 {
		return m[1], true
	}
	return "", false
}

var reHostPort = regexp.MustCompile(`([\w.-]+)(?::(\d+))?:\s*[Cc]onnection refused`)

func extractHostPort(output string) (string, bool) {
	if m := reHostPort.FindStringSubmatch(output); len(m) > 1 {
		if len(m) > 2 && m[2] != "" {
			return m[1] + ":" + m[2], true
		}
		return m[1], true
	}
	return "", false
}
