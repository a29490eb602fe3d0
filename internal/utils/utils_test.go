package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/temirov/digest/internal/utils"
)

func TestDeduplicatePatterns(t *testing.T) {
	deduplicated := utils.DeduplicatePatterns([]string{"a", "b", "a", "c", "b"})
	expected := []string{"a", "b", "c"}
	if len(deduplicated) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, deduplicated)
	}
	for valueIndex, expectedValue := range expected {
		if deduplicated[valueIndex] != expectedValue {
			t.Fatalf("value %d: expected %q, got %q", valueIndex, expectedValue, deduplicated[valueIndex])
		}
	}
}

func TestSplitCommaList(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "plain", input: "a,b,c", expected: []string{"a", "b", "c"}},
		{name: "whitespace", input: " a , b ", expected: []string{"a", "b"}},
		{name: "empty entries", input: "a,,b,", expected: []string{"a", "b"}},
		{name: "empty input", input: "", expected: nil},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			actual := utils.SplitCommaList(testCase.input)
			if len(actual) != len(testCase.expected) {
				t.Fatalf("SplitCommaList(%q) = %v, expected %v", testCase.input, actual, testCase.expected)
			}
			for valueIndex, expectedValue := range testCase.expected {
				if actual[valueIndex] != expectedValue {
					t.Fatalf("value %d: expected %q, got %q", valueIndex, expectedValue, actual[valueIndex])
				}
			}
		})
	}
}

func TestRelativePathOrSelf(t *testing.T) {
	rootDirectory := t.TempDir()

	if relative := utils.RelativePathOrSelf(rootDirectory, rootDirectory); relative != "." {
		t.Fatalf("root relative to itself must be \".\", got %q", relative)
	}

	nestedPath := filepath.Join(rootDirectory, "src", "main.py")
	if relative := utils.RelativePathOrSelf(nestedPath, rootDirectory); relative != "src/main.py" {
		t.Fatalf("expected forward-slash relative path, got %q", relative)
	}
}

func TestFindRepositoryRoot(t *testing.T) {
	repositoryRoot := t.TempDir()
	if makeError := os.Mkdir(filepath.Join(repositoryRoot, utils.GitDirectoryName), 0o755); makeError != nil {
		t.Fatalf("creating git marker failed: %v", makeError)
	}
	nestedDirectory := filepath.Join(repositoryRoot, "a", "b")
	if makeError := os.MkdirAll(nestedDirectory, 0o755); makeError != nil {
		t.Fatalf("mkdir failed: %v", makeError)
	}

	foundRoot, found := utils.FindRepositoryRoot(nestedDirectory)
	if !found {
		t.Fatalf("marker must be found from a nested directory")
	}
	if foundRoot != repositoryRoot {
		t.Fatalf("expected root %q, got %q", repositoryRoot, foundRoot)
	}
}
