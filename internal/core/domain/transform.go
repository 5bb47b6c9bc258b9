package domain

import (
	"fmt"
	"strings"
)

// TransformKind is the fixed per-session processing choice.
type TransformKind int

const (
	TransformPassthrough TransformKind = iota
	TransformGrayscale
	TransformEdge
	TransformBlur
	TransformDetectTrack
	TransformDetectOnly
)

// TransformKinds lists every kind; dispatch code is tested against it.
var TransformKinds = []TransformKind{
	TransformPassthrough,
	TransformGrayscale,
	TransformEdge,
	TransformBlur,
	TransformDetectTrack,
	TransformDetectOnly,
}

func (k TransformKind) String() string {
	switch k {
	case TransformPassthrough:
		return "passthrough"
	case TransformGrayscale:
		return "grayscale"
	case TransformEdge:
		return "edge"
	case TransformBlur:
		return "blur"
	case TransformDetectTrack:
		return "track"
	case TransformDetectOnly:
		return "detect"
	default:
		return "unknown"
	}
}

// IsDetection reports whether the kind runs the inference collaborator.
func (k TransformKind) IsDetection() bool {
	return k == TransformDetectTrack || k == TransformDetectOnly
}

// ParseTransformKind maps a request value onto a kind.
func ParseTransformKind(s string) (TransformKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passthrough", "none":
		return TransformPassthrough, true
	case "grayscale", "gray", "grey":
		return TransformGrayscale, true
	case "edge", "edges":
		return TransformEdge, true
	case "blur":
		return TransformBlur, true
	case "track", "detect-and-track":
		return TransformDetectTrack, true
	case "detect", "detect-only":
		return TransformDetectOnly, true
	default:
		return TransformPassthrough, false
	}
}

// MarshalText renders the kind by name in JSON.
func (k TransformKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name.
func (k *TransformKind) UnmarshalText(text []byte) error {
	kind, ok := ParseTransformKind(string(text))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTransform, text)
	}
	*k = kind
	return nil
}
