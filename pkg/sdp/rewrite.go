// Package sdp rewrites session descriptions for playback compatibility and
// applies encode preferences to outgoing offers.
package sdp

import (
	"fmt"
	"strconv"
	"strings"
)

const profileLevelAttr = "profile-level-id="

// H.264 constrained baseline: the profile byte must not exceed 0x42, and a
// zero constraint byte is replaced with the constrained-set pattern.
const (
	maxProfile          = 0x42
	baselineConstraints = 0xE0
	interopLevel        = 0x1F
)

// ForceCompatibleProfile clamps every H.264 profile-level-id in the
// description to constrained baseline so the widest range of decoders can
// play the stream. Lines without the attribute, and lines where the value is
// not six hex digits, pass through verbatim. Line endings are normalized to
// CRLF. The rewrite is idempotent and never fails.
func ForceCompatibleProfile(description string) string {
	lines := strings.Split(description, "\n")
	for i, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if line != "" && strings.Contains(line, profileLevelAttr) {
			line = rewriteProfileLevel(line)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\r\n")
}

func rewriteProfileLevel(line string) string {
	start := strings.Index(line, profileLevelAttr) + len(profileLevelAttr)
	end := start + 6
	if end > len(line) {
		return line
	}

	profile, okP := parseHexByte(line[start : start+2])
	constraint, okC := parseHexByte(line[start+2 : start+4])
	level, okL := parseHexByte(line[start+4 : end])
	if !okP || !okC || !okL {
		return line
	}

	if profile > maxProfile {
		profile = maxProfile
		constraint = baselineConstraints
		level = interopLevel
	}
	if constraint == 0x00 {
		constraint = baselineConstraints
	}

	return line[:start] + fmt.Sprintf("%02x%02x%02x", profile, constraint, level) + line[end:]
}

func parseHexByte(s string) (byte, bool) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
