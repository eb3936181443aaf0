package signaling

import "strings"

// lowLatencyAudioAttrs are the attribute lines inserted after each m=audio
// line. Order matters: idempotence detection below requires an exact match.
var lowLatencyAudioAttrs = []string{"a=sendrecv", "a=ptime:20", "a=maxptime:20"}

// PatchLowLatencyAudio appends a=sendrecv, a=ptime:20 and a=maxptime:20 after
// every m=audio line of sdp that doesn't already carry them. It constrains
// packetization interval and direction for low-latency voice (see spec
// §4.6). The insertion is skipped wherever the three lines already
// immediately follow an m=audio line, so applying the patch to its own
// output is a true no-op: it only appends more when a new, unpatched
// m=audio line has been introduced since the last patch.
func PatchLowLatencyAudio(sdp string) string {
	const lineSep = "\r\n"
	lines := strings.Split(sdp, lineSep)
	// Split on \r\n leaves one trailing empty element when sdp already ends
	// in \r\n; drop it so we don't duplicate the terminator.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	out := make([]string, 0, len(lines)+len(lowLatencyAudioAttrs))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		out = append(out, line)
		if !strings.HasPrefix(line, "m=audio") {
			continue
		}
		if hasAttrsAt(lines, i+1) {
			continue
		}
		out = append(out, lowLatencyAudioAttrs...)
	}
	return strings.Join(out, lineSep) + lineSep
}

// hasAttrsAt reports whether lowLatencyAudioAttrs already occupy lines
// starting at index i.
func hasAttrsAt(lines []string, i int) bool {
	if i+len(lowLatencyAudioAttrs) > len(lines) {
		return false
	}
	for j, attr := range lowLatencyAudioAttrs {
		if lines[i+j] != attr {
			return false
		}
	}
	return true
}
