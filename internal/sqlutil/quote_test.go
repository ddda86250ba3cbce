package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"data_types", `"data_types"`},
		{"select", `"select"`},
		{"first name", `"first name"`},
		{`a"b`, `"a""b"`},
		{`"`, `""""`},
		{"", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := QuoteIdentifier(tt.input); got != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestQuoteQualified(t *testing.T) {
	tests := []struct {
		name     string
		parts    []string
		expected string
	}{
		{"table only", []string{"entity_ids"}, `"entity_ids"`},
		{"schema", []string{"public", "entity_ids"}, `"public"."entity_ids"`},
		{"database", []string{"graph", "public", "entity_ids"}, `"graph"."public"."entity_ids"`},
		{"skips empty", []string{"", "public", "entity_ids"}, `"public"."entity_ids"`},
		{"escapes parts", []string{`we"ird`, "t"}, `"we""ird"."t"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteQualified(tt.parts...); got != tt.expected {
				t.Errorf("QuoteQualified(%q) = %q, want %q", tt.parts, got, tt.expected)
			}
		})
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"description", "'description'"},
		{"$id", "'$id'"},
		{"it's", "'it''s'"},
		{"", "''"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := QuoteString(tt.input); got != tt.expected {
				t.Errorf("QuoteString(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
