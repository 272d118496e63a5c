package main

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	pattern := regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_create_reconciliation_runs.sql", true, "0001", "create_reconciliation_runs"},
		{"0002_create_reconciliation_results.sql", true, "0002", "create_reconciliation_results"},
		{"001_invalid.sql", false, "", ""},       // wrong number format
		{"0001_test", false, "", ""},             // missing .sql
		{"0001.sql", false, "", ""},              // missing name
		{"invalid_0001_test.sql", false, "", ""}, // wrong order
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := pattern.FindStringSubmatch(tt.filename)
			if tt.valid {
				if matches == nil {
					t.Fatalf("pattern did not match %q", tt.filename)
				}
				if matches[1] != tt.version || matches[2] != tt.name {
					t.Errorf("matched (%q, %q), want (%q, %q)", matches[1], matches[2], tt.version, tt.name)
				}
			} else if matches != nil {
				t.Errorf("pattern matched %q, want no match", tt.filename)
			}
		})
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	content := []byte("CREATE TABLE test (id INT64);")
	changed := []byte("CREATE TABLE different (id INT64);")

	a := fmt.Sprintf("%x", sha256.Sum256(content))
	b := fmt.Sprintf("%x", sha256.Sum256(content))
	c := fmt.Sprintf("%x", sha256.Sum256(changed))

	if a != b {
		t.Error("same content must produce the same checksum")
	}
	if a == c {
		t.Error("different content must produce different checksums")
	}
}
