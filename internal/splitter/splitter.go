// Package splitter classifies a growing model output buffer into reasoning
// and answer text using <think> delimiters.
package splitter

import "strings"

const (
	OpenMarker  = "<think>"
	CloseMarker = "</think>"
)

// Phase reports which channel the model is currently writing to.
type Phase string

const (
	PhaseThinking  Phase = "thinking"
	PhaseAnswering Phase = "answering"
)

// Result is the split of a buffer.
type Result struct {
	Phase     Phase
	Reasoning string
	Answer    string
}

// Split recomputes the split from the full accumulated buffer. It keeps no
// state, so markers that arrive across several chunks are handled by calling
// it again once the buffer has grown.
func Split(buf string) Result {
	start := strings.Index(buf, OpenMarker)
	if start < 0 {
		return Result{Phase: PhaseAnswering, Answer: buf}
	}
	body := buf[start+len(OpenMarker):]
	// Only look for the close marker after the open one; a stray close
	// marker earlier in the buffer does not end the reasoning block.
	end := strings.Index(body, CloseMarker)
	if end < 0 {
		return Result{Phase: PhaseThinking, Reasoning: body, Answer: buf[:start]}
	}
	return Result{
		Phase:     PhaseAnswering,
		Reasoning: strings.TrimSpace(body[:end]),
		Answer:    body[end+len(CloseMarker):],
	}
}

// Stable splits buf after withholding a trailing partial marker, so live
// views never show a fragment such as "<th" that the next chunk may turn
// into a marker. Once the buffer ends in anything else it equals Split.
func Stable(buf string) Result {
	return Split(buf[:len(buf)-pendingMarker(buf)])
}

// pendingMarker returns the length of the longest suffix of buf that is a
// proper prefix of either marker.
func pendingMarker(buf string) int {
	n := 0
	for _, m := range []string{OpenMarker, CloseMarker} {
		for k := len(m) - 1; k > n; k-- {
			if strings.HasSuffix(buf, m[:k]) {
				n = k
				break
			}
		}
	}
	return n
}
