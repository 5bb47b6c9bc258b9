package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// GenerateID generates a random ID with prefix
func GenerateID(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// InstanceID names this process on the shared event bus: the host name plus
// a random suffix, so restarts on one host never collide.
func InstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "relay"
	}
	host = strings.ToLower(strings.ReplaceAll(host, "_", "-"))
	return GenerateID(host)
}
