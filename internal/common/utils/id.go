// Package utils provides small helpers shared across the integration layer:
// retry with backoff, ID generation and duration parsing.
package utils

import (
	"crypto/rand"
	"fmt"
)

// GenerateUUID generates a random UUID v4 string.
func GenerateUUID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}

	bytes[6] = (bytes[6] & 0x0f) | 0x40 // version 4
	bytes[8] = (bytes[8] & 0x3f) | 0x80 // variant 10

	return fmt.Sprintf("%x-%x-%x-%x-%x",
		bytes[0:4], bytes[4:6], bytes[6:8], bytes[8:10], bytes[10:16]), nil
}
