package validation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/pion/sdp/v3"
)

// MaxSDPSize bounds accepted session descriptions.
const MaxSDPSize = 64 * 1024

// ValidateSDPType validates the description type of an inbound offer
func ValidateSDPType(sdpType string) error {
	if sdpType == "" {
		return fmt.Errorf("type is required")
	}
	if sdpType != "offer" {
		return fmt.Errorf("type must be \"offer\", got %q", sdpType)
	}
	return nil
}

// ValidateOfferSDP parses raw and checks that it carries at least one video section.
func ValidateOfferSDP(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("sdp is required")
	}
	if len(raw) > MaxSDPSize {
		return fmt.Errorf("sdp is too large (max %d bytes)", MaxSDPSize)
	}

	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return fmt.Errorf("malformed sdp: %w", err)
	}

	for _, m := range desc.MediaDescriptions {
		if m.MediaName.Media == "video" {
			return nil
		}
	}
	return fmt.Errorf("sdp has no video media section")
}

// ValidateSessionID validates a session id path parameter
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session ID is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme (must be http or https)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
