package models

import (
	"reflect"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "catalog id", input: "M 31", expected: "m-31"},
		{name: "punctuation removed", input: "NGC 7000 (North America)", expected: "ngc-7000-north-america"},
		{name: "underscores collapse", input: "Sh2__129", expected: "sh2-129"},
		{name: "accents kept", input: "Nébuleuse du Cœur", expected: "nébuleuse-du-cœur"},
		{name: "empty falls back", input: "  ", expected: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Slugify(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		name     string
		input    [][]string
		expected []string
	}{
		{
			name:     "keeps first seen order",
			input:    [][]string{{"galaxy", "spiral galaxy", "galaxy"}},
			expected: []string{"galaxy", "spiral galaxy"},
		},
		{
			name:     "drops empty strings",
			input:    [][]string{{"", "nebula", ""}},
			expected: []string{"nebula"},
		},
		{
			name:     "merges lists",
			input:    [][]string{{"a", "b"}, {"b", "c"}},
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "nil input gives empty slice",
			input:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Dedupe(tt.input...)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}
