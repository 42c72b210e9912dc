package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestParseFitID tests fit ID parsing
func TestParseFitID(t *testing.T) {
	tests := []struct {
		input    string
		expected FitID
		hasError bool
	}{
		{"valid-id", FitID("valid-id"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFitID(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("ParseFitID(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFitID(%q): unexpected error %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("ParseFitID(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// TestHash tests deterministic hashing
func TestHash(t *testing.T) {
	a := NewHash([]byte("payload"))
	b := NewHash([]byte("payload"))
	if !a.Equals(b) {
		t.Error("identical payloads must hash identically")
	}
	if a.Equals(NewHash([]byte("other"))) {
		t.Error("different payloads should not collide")
	}
	if a.IsEmpty() {
		t.Error("hash of data should not be empty")
	}
}
