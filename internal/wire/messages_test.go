package wire

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestDecodeRequest(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Request
	}{
		{"status", "STATUS", Request{Kind: TagStatus}},
		{"cwd", "CWD:/home/user/proj", Request{Kind: TagCWD, Line: "/home/user/proj"}},
		{"query", "QUERY:please list the pods", Request{Kind: TagQuery, Line: "please list the pods"}},
		{
			"bash_failed",
			"BASH_FAILED:127:kubectl get pods:/tmp/out.txt",
			Request{Kind: TagBashFailed, ExitCode: 127, Line: "kubectl get pods", OutputPath: "/tmp/out.txt"},
		},
		{"verbose", "VERBOSE:2", Request{Kind: TagVerbose, Verbosity: 2}},
		{"provider", "AI_PROVIDER:anthropic", Request{Kind: TagAIProvider, Provider: "anthropic"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeRequest(tc.line)
			if err != nil {
				t.Fatalf("DecodeRequest(%q): %v", tc.line, err)
			}
			if got != tc.want {
				t.Errorf("DecodeRequest(%q) = %+v, want %+v", tc.line, got, tc.want)
			}
		})
	}
}

func TestDecodeRequestMalformed(t *testing.T) {
	cases := []string{
		"BASH_FAILED:notanumber:cmd:/tmp/x",
		"VERBOSE:high",
		"GARBAGE",
	}
	for _, line := range cases {
		if _, err := DecodeRequest(line); err == nil {
			t.Errorf("DecodeRequest(%q): expected error, got nil", line)
		}
	}
}

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	encoded := EncodeBashFailed(1, "foo bar", "/tmp/cap.txt")
	line := strings.TrimRight(encoded, "\n")
	got, err := DecodeRequest(line)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	want := Request{Kind: TagBashFailed, ExitCode: 1, Line: "foo bar", OutputPath: "/tmp/cap.txt"}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestEncodeReadReplySimple(t *testing.T) {
	var buf bytes.Buffer
	for _, kind := range []string{TagAIReady, TagAILoad, TagAIFailed, TagOK} {
		if err := EncodeReply(&buf, Reply{Kind: kind}); err != nil {
			t.Fatalf("EncodeReply(%s): %v", kind, err)
		}
	}
	r := bufio.NewReader(&buf)
	for _, kind := range []string{TagAIReady, TagAILoad, TagAIFailed, TagOK} {
		got, err := ReadReply(r)
		if err != nil {
			t.Fatalf("ReadReply: %v", err)
		}
		if got.Kind != kind {
			t.Errorf("ReadReply = %q, want %q", got.Kind, kind)
		}
	}
}

func TestEncodeReadReplyCmd(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeReply(&buf, Reply{Kind: TagCmd, Body: "kubectl get pods"}); err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}
	got, err := ReadReply(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadReply: %v", err)
	}
	if got.Kind != TagCmd || got.Body != "kubectl get pods" {
		t.Errorf("ReadReply = %+v", got)
	}
}

func TestEncodeReadReplyFramedMultiline(t *testing.T) {
	body := "line one\nline two\nline three"
	var buf bytes.Buffer
	if err := EncodeReply(&buf, Reply{Kind: TagEdit, Body: body}); err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}
	got, err := ReadReply(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadReply: %v", err)
	}
	if got.Kind != TagEdit || got.Body != body {
		t.Errorf("ReadReply = %+v, want Body %q", got, body)
	}
}

func TestEncodeReadReplyFramedThenAnotherMessage(t *testing.T) {
	var buf bytes.Buffer
	body := "first\nmultiline\nreply"
	if err := EncodeReply(&buf, Reply{Kind: TagBlocked, Body: body}); err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}
	if err := EncodeReply(&buf, Reply{Kind: TagOK}); err != nil {
		t.Fatalf("EncodeReply: %v", err)
	}

	r := bufio.NewReader(&buf)
	first, err := ReadReply(r)
	if err != nil {
		t.Fatalf("ReadReply 1: %v", err)
	}
	if first.Kind != TagBlocked || first.Body != body {
		t.Errorf("ReadReply 1 = %+v", first)
	}
	second, err := ReadReply(r)
	if err != nil {
		t.Fatalf("ReadReply 2: %v", err)
	}
	if second.Kind != TagOK {
		t.Errorf("ReadReply 2 = %+v, want OK", second)
	}
}

func TestProbeVerdictRoundTrip(t *testing.T) {
	cases := []ProbeVerdict{
		{Kind: ProbeOk, ExitCode: 0, Stdout: "hello\n", Stderr: ""},
		{Kind: ProbeOk, ExitCode: 127, Stdout: "", Stderr: "command not found"},
		{Kind: ProbeVerdictInteractive},
		{Kind: ProbeVerdictTimeout},
	}
	for _, tc := range cases {
		encoded := EncodeProbeVerdict(tc)
		got, err := DecodeProbeVerdict(bufio.NewReader(strings.NewReader(encoded)))
		if err != nil {
			t.Fatalf("DecodeProbeVerdict(%q): %v", encoded, err)
		}
		if got != tc {
			t.Errorf("round trip = %+v, want %+v", got, tc)
		}
	}
}

func TestEncodeProbeCWD(t *testing.T) {
	got := EncodeProbeCWD("/tmp/work")
	want := "CD:/tmp/work\n"
	if got != want {
		t.Errorf("EncodeProbeCWD = %q, want %q", got, want)
	}
	if !strings.HasPrefix(got, ProbeCWD) {
		t.Errorf("EncodeProbeCWD output doesn't start with ProbeCWD prefix: %q", got)
	}
}
