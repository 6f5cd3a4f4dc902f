package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoImages is reported when a scan finds no image files under the root.
var ErrNoImages = errors.New("no images found")

// EnumerationError reports a failure to list the labeled folder tree.
type EnumerationError struct {
	Root string
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate %s: %v", e.Root, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

var supportedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
}

// ImageFolder is the result of scanning a labeled directory tree where each
// immediate subdirectory of the root names a class and contains that class's
// image files. Files directly in the root are ignored.
type ImageFolder struct {
	root         string
	imagePaths   []string
	labels       []int
	labelNames   []string
	labelToIndex map[string]int
}

// ScanImageFolder enumerates root/<label>/<image> files with png, jpg, jpeg or
// bmp extensions. Label indices are assigned in first-seen order over the file
// enumeration: the first file discovered for a label claims the next free
// index. A subdirectory containing no image files contributes no label.
//
// os.ReadDir returns entries sorted by name, so repeated scans over an
// unchanged tree produce the same index assignment; the pipeline does not
// otherwise rely on index stability across runs.
func ScanImageFolder(root string) (*ImageFolder, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &EnumerationError{Root: root, Err: err}
	}

	folder := &ImageFolder{
		root:         root,
		labelToIndex: make(map[string]int),
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		labelName := entry.Name()
		labelDir := filepath.Join(root, labelName)

		files, err := os.ReadDir(labelDir)
		if err != nil {
			return nil, &EnumerationError{Root: root, Err: err}
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(file.Name()))
			if !supportedExtensions[ext] {
				continue
			}

			index, seen := folder.labelToIndex[labelName]
			if !seen {
				index = len(folder.labelNames)
				folder.labelToIndex[labelName] = index
				folder.labelNames = append(folder.labelNames, labelName)
			}

			folder.imagePaths = append(folder.imagePaths, filepath.Join(labelDir, file.Name()))
			folder.labels = append(folder.labels, index)
		}
	}

	if len(folder.imagePaths) == 0 {
		return nil, &EnumerationError{Root: root, Err: ErrNoImages}
	}

	return folder, nil
}

// Len returns the number of image files discovered.
func (f *ImageFolder) Len() int {
	return len(f.imagePaths)
}

// NumClasses returns the number of distinct labels.
func (f *ImageFolder) NumClasses() int {
	return len(f.labelNames)
}

// LabelNames returns the label names in index order (first-seen order).
func (f *ImageFolder) LabelNames() []string {
	names := make([]string, len(f.labelNames))
	copy(names, f.labelNames)
	return names
}

// ImagePaths returns the discovered file paths in enumeration order.
func (f *ImageFolder) ImagePaths() []string {
	paths := make([]string, len(f.imagePaths))
	copy(paths, f.imagePaths)
	return paths
}

// Labels returns the label index for each file, aligned with ImagePaths.
func (f *ImageFolder) Labels() []int {
	labels := make([]int, len(f.labels))
	copy(labels, f.labels)
	return labels
}

// GetItem returns the image path and label index at the given position.
func (f *ImageFolder) GetItem(index int) (string, int, error) {
	if index < 0 || index >= len(f.imagePaths) {
		return "", 0, fmt.Errorf("index %d out of range [0, %d)", index, len(f.imagePaths))
	}
	return f.imagePaths[index], f.labels[index], nil
}

// ClassDistribution returns the number of samples per label name.
func (f *ImageFolder) ClassDistribution() map[string]int {
	dist := make(map[string]int)
	for _, label := range f.labels {
		dist[f.labelNames[label]]++
	}
	return dist
}

// String returns a human-readable summary of the scan.
func (f *ImageFolder) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ImageFolder: %d samples, %d classes\n", len(f.imagePaths), len(f.labelNames)))

	dist := f.ClassDistribution()
	for _, name := range f.labelNames {
		sb.WriteString(fmt.Sprintf("  %s: %d samples\n", name, dist[name]))
	}
	return sb.String()
}
