package sql

import (
	"testing"
)

func TestCheckValueForInjection(t *testing.T) {
	tests := []struct {
		name            string
		column          string
		value           any
		expectInjection bool
	}{
		// Clean values
		{name: "clean string value", column: "customer_id", value: "12345"},
		{name: "clean email address", column: "email", value: "user@example.com"},
		{name: "clean date string", column: "start_date", value: "2024-01-15"},
		{name: "clean multi-word value", column: "description", value: "This is a normal description with spaces"},
		{name: "apostrophe in a name", column: "name", value: "O'Brien"},
		{name: "empty string", column: "filter", value: ""},

		// Non-string values can't carry injection
		{name: "integer value", column: "limit", value: 100},
		{name: "float value", column: "price", value: 99.95},
		{name: "boolean value", column: "is_active", value: true},
		{name: "nil value", column: "optional", value: nil},

		// Injection attempts
		{name: "classic quote injection", column: "username", value: "' OR '1'='1", expectInjection: true},
		{name: "drop table injection", column: "search", value: "'; DROP TABLE users--", expectInjection: true},
		{name: "union select injection", column: "id", value: "1 UNION SELECT * FROM passwords", expectInjection: true},
		{name: "stacked queries", column: "name", value: "admin'; DELETE FROM logs; --", expectInjection: true},
		{name: "time-based blind injection", column: "id", value: "1' AND SLEEP(5)--", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckValueForInjection(tt.column, tt.value)

			if !tt.expectInjection {
				if result != nil {
					t.Errorf("expected no injection, got fingerprint %q", result.Fingerprint)
				}
				return
			}

			if result == nil {
				t.Fatalf("expected injection detection, got nil")
			}
			if !result.IsSQLi {
				t.Errorf("expected IsSQLi=true")
			}
			if result.Column != tt.column {
				t.Errorf("expected Column=%q, got %q", tt.column, result.Column)
			}
			if result.Value != tt.value {
				t.Errorf("expected Value=%v, got %v", tt.value, result.Value)
			}
			if result.Fingerprint == "" {
				t.Errorf("expected non-empty fingerprint")
			}
		})
	}
}

func TestCheckValues(t *testing.T) {
	set := NewValues("name", "Alice", "bio", "'; DROP TABLE users--")
	where := NewValues("id", 7, "email", "' OR '1'='1")

	results := CheckValues(set, nil, where)

	if len(results) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(results))
	}
	if results[0].Column != "bio" {
		t.Errorf("expected first finding on bio, got %q", results[0].Column)
	}
	if results[1].Column != "email" {
		t.Errorf("expected second finding on email, got %q", results[1].Column)
	}
}

func TestCheckValues_Clean(t *testing.T) {
	results := CheckValues(NewValues("name", "Alice", "age", 30))
	if len(results) != 0 {
		t.Errorf("expected no findings, got %d", len(results))
	}
}

func TestCheckValueForInjection_Bytes(t *testing.T) {
	if result := CheckValueForInjection("payload", []byte("plain text")); result != nil {
		t.Errorf("expected no injection, got fingerprint %q", result.Fingerprint)
	}
	result := CheckValueForInjection("payload", []byte("' OR '1'='1"))
	if result == nil || !result.IsSQLi {
		t.Fatalf("expected injection detection for byte slice value")
	}
}
