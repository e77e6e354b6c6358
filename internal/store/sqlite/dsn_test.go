package sqlite

import "testing"

func TestParseDSN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "memory", input: "sqlite://:memory:", expected: ":memory:"},
		{name: "absolute path", input: "sqlite:///var/lib/graphreap.db", expected: "/var/lib/graphreap.db"},
		{name: "relative path", input: "sqlite://graphreap.db", expected: "./graphreap.db"},
		{name: "dot relative path", input: "sqlite://./data/graphreap.db", expected: "./data/graphreap.db"},
		{name: "escaped path", input: "sqlite://my%20data.db", expected: "./my data.db"},
		{name: "query string", input: "sqlite://graphreap.db?_pragma=busy_timeout(5000)", expected: "./graphreap.db?_pragma=busy_timeout(5000)"},
		{name: "wrong scheme", input: "postgres://localhost/db", wantErr: true},
		{name: "empty path", input: "sqlite://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDSN(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseDSN(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDSN(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("parseDSN(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
