package trace

import (
	"crypto/rand"
	"io"
	"strings"
)

const (
	// AttrTraceID carries the readable trace id of a run on its root span.
	AttrTraceID = "agents.trace_id"
	// AttrSpanType classifies a span: trace, agent, generation or function.
	AttrSpanType = "openai.agents.span_type"
)

const (
	traceIDPrefix = "trace_"
	traceIDLength = 32
	alphanum      = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// MakeTraceID returns "trace_" followed by tag, a "0" separator and random
// lowercase alphanumerics, 32 characters after the prefix. The tag can be
// recovered with NameFromTraceID as long as it contains no "0".
func MakeTraceID(tag string) string {
	tag += "0"
	pad := traceIDLength - len(tag)
	if pad < 0 {
		pad = 0
	}
	suffix, err := randomAlnum(rand.Reader, pad)
	if err != nil {
		panic(err)
	}
	return traceIDPrefix + tag + suffix
}

// randomAlnum draws n characters of alphanum from r. Bytes at or above the
// largest multiple of len(alphanum) are discarded so every character is
// equally likely.
func randomAlnum(r io.Reader, n int) (string, error) {
	const limit = 256 - 256%len(alphanum)
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4+1)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphanum[int(b)%len(alphanum)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// NameFromTraceID extracts the tag passed to MakeTraceID.
func NameFromTraceID(id string) (string, bool) {
	rest, ok := strings.CutPrefix(id, traceIDPrefix)
	if !ok {
		return "", false
	}
	name, _, ok := strings.Cut(rest, "0")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
