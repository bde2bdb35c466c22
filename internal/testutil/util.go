// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"
)

var Update = flag.Bool(
	"update",
	false,
	"update golden files",
)

//
// --- Golden file helpers ---
//

func goldenPath(name string) string {
	return filepath.Join("testdata", name+".golden")
}

// CompareWithGolden fails t when actual differs from testdata/<name>.golden.
// Run the test with -update to rewrite the golden file instead.
func CompareWithGolden(t *testing.T, name string, actual []byte) {
	t.Helper()

	if *Update {
		if err := os.WriteFile(goldenPath(name), actual, 0644); err != nil {
			t.Fatalf("failed to write golden file: %v", err)
		}
		return
	}

	expected, err := os.ReadFile(goldenPath(name))
	if err != nil {
		t.Fatalf("failed to read golden file: %v", err)
	}

	if !bytes.Equal(expected, actual) {
		t.Fatalf("golden mismatch for %s\nexpected:\n%s\nactual:\n%s",
			name, string(expected), string(actual))
	}
}
