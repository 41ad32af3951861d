package utils

import (
	"strings"
	"testing"
)

func TestGenerateUUID(t *testing.T) {
	id, err := GenerateUUID()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("expected 5 groups, got %d (%s)", len(parts), id)
	}
	if parts[2][0] != '4' {
		t.Errorf("expected version 4 UUID, got %s", id)
	}
}
