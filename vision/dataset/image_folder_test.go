package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestTree builds root/<label>/<file> with mock file contents. Scanning
// never decodes, so plain text files are enough here.
func createTestTree(t *testing.T, labels map[string][]string) string {
	t.Helper()
	tempDir := t.TempDir()

	for label, files := range labels {
		labelDir := filepath.Join(tempDir, label)
		if err := os.MkdirAll(labelDir, 0755); err != nil {
			t.Fatalf("Failed to create label directory %s: %v", labelDir, err)
		}
		for _, name := range files {
			path := filepath.Join(labelDir, name)
			if err := os.WriteFile(path, []byte("mock image content"), 0644); err != nil {
				t.Fatalf("Failed to create mock image %s: %v", path, err)
			}
		}
	}

	return tempDir
}

func TestScanImageFolder(t *testing.T) {
	t.Run("ValidTree", func(t *testing.T) {
		root := createTestTree(t, map[string][]string{
			"cat":  {"1.png", "2.jpg"},
			"dog":  {"3.jpeg"},
			"bird": {"4.bmp", "5.png", "6.jpg"},
		})

		folder, err := ScanImageFolder(root)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if folder.Len() != 6 {
			t.Errorf("Expected 6 images, got %d", folder.Len())
		}
		if folder.NumClasses() != 3 {
			t.Errorf("Expected 3 classes, got %d", folder.NumClasses())
		}

		dist := folder.ClassDistribution()
		expected := map[string]int{"cat": 2, "dog": 1, "bird": 3}
		for label, count := range expected {
			if dist[label] != count {
				t.Errorf("Expected %d samples for %s, got %d", count, label, dist[label])
			}
		}
	})

	t.Run("FirstSeenLabelOrder", func(t *testing.T) {
		// os.ReadDir sorts entries, so enumeration visits bird before cat
		// before dog; the first file seen for each label claims the next
		// free index.
		root := createTestTree(t, map[string][]string{
			"dog":  {"a.png"},
			"cat":  {"b.png"},
			"bird": {"c.png"},
		})

		folder, err := ScanImageFolder(root)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		names := folder.LabelNames()
		expected := []string{"bird", "cat", "dog"}
		for i, name := range expected {
			if names[i] != name {
				t.Errorf("Expected label %q at index %d, got %q", name, i, names[i])
			}
		}

		// Every file of a label carries that label's index.
		paths := folder.ImagePaths()
		labels := folder.Labels()
		for i, path := range paths {
			parent := filepath.Base(filepath.Dir(path))
			if names[labels[i]] != parent {
				t.Errorf("Path %s has label index %d (%s), expected %s", path, labels[i], names[labels[i]], parent)
			}
		}
	})

	t.Run("IgnoresRootFiles", func(t *testing.T) {
		root := createTestTree(t, map[string][]string{
			"cat": {"1.png"},
		})
		if err := os.WriteFile(filepath.Join(root, "stray.png"), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create stray file: %v", err)
		}

		folder, err := ScanImageFolder(root)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if folder.Len() != 1 {
			t.Errorf("Expected 1 image, got %d", folder.Len())
		}
	})

	t.Run("IgnoresUnsupportedExtensions", func(t *testing.T) {
		root := createTestTree(t, map[string][]string{
			"cat": {"1.png", "notes.txt", "2.gif", "3.JPG"},
		})

		folder, err := ScanImageFolder(root)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		// Extension matching is case-insensitive; .txt and .gif are skipped.
		if folder.Len() != 2 {
			t.Errorf("Expected 2 images, got %d", folder.Len())
		}
	})

	t.Run("EmptyLabelDirContributesNoClass", func(t *testing.T) {
		root := createTestTree(t, map[string][]string{
			"cat": {"1.png"},
		})
		if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
			t.Fatalf("Failed to create empty dir: %v", err)
		}

		folder, err := ScanImageFolder(root)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if folder.NumClasses() != 1 {
			t.Errorf("Expected 1 class, got %d", folder.NumClasses())
		}
	})

	t.Run("EmptyRoot", func(t *testing.T) {
		root := t.TempDir()

		_, err := ScanImageFolder(root)
		var enumErr *EnumerationError
		if !errors.As(err, &enumErr) {
			t.Fatalf("Expected EnumerationError, got %v", err)
		}
		if !errors.Is(err, ErrNoImages) {
			t.Errorf("Expected ErrNoImages, got %v", err)
		}
	})

	t.Run("MissingRoot", func(t *testing.T) {
		_, err := ScanImageFolder(filepath.Join(t.TempDir(), "nope"))
		var enumErr *EnumerationError
		if !errors.As(err, &enumErr) {
			t.Fatalf("Expected EnumerationError, got %v", err)
		}
	})
}

func TestGetItem(t *testing.T) {
	root := createTestTree(t, map[string][]string{
		"cat": {"1.png"},
	})

	folder, err := ScanImageFolder(root)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	path, label, err := folder.GetItem(0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if filepath.Base(path) != "1.png" || label != 0 {
		t.Errorf("Expected (1.png, 0), got (%s, %d)", filepath.Base(path), label)
	}

	if _, _, err := folder.GetItem(-1); err == nil {
		t.Error("Expected error for negative index")
	}
	if _, _, err := folder.GetItem(1); err == nil {
		t.Error("Expected error for out-of-range index")
	}
}

func TestImageFolderString(t *testing.T) {
	root := createTestTree(t, map[string][]string{
		"cat": {"1.png", "2.png"},
	})

	folder, err := ScanImageFolder(root)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	s := folder.String()
	if s == "" {
		t.Error("Expected non-empty summary")
	}
	for _, want := range []string{"2 samples", "1 classes", "cat"} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary %q missing %q", s, want)
		}
	}
}
