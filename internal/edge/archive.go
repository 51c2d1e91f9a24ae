package edge

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Archive keeps the raw audio and receipt captures behind each transaction
type Archive interface {
	// Save stores a capture under the day it was taken and returns its relative path
	Save(takenAt time.Time, name string, data []byte) (string, error)

	// Get reads a capture by relative path
	Get(path string) ([]byte, error)

	// Delete removes a capture
	Delete(path string) error
}

// LocalArchive implements Archive on the local filesystem as <base>/<YYYY-MM-DD>/<name>
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates the archive directory if needed
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

func (l *LocalArchive) Save(takenAt time.Time, name string, data []byte) (string, error) {
	rel := filepath.Join(takenAt.UTC().Format("2006-01-02"), filepath.Base(name))
	full, err := l.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("creating day directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("writing capture: %w", err)
	}
	return rel, nil
}

func (l *LocalArchive) Get(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}
	return data, nil
}

func (l *LocalArchive) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("deleting capture: %w", err)
	}
	return nil
}

// resolve joins a relative path onto the base and refuses anything that escapes it
func (l *LocalArchive) resolve(rel string) (string, error) {
	clean := filepath.Clean(rel)
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("capture path %q is outside the archive", rel)
	}
	return filepath.Join(l.basePath, clean), nil
}

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	nameSpaces      = regexp.MustCompile(`\s+`)
)

// captureName turns an uploaded filename into "<unix nanos>_<clean base><ext>".
// Phone uploads often carry long generated names, so the base is capped at 50 bytes.
func captureName(takenAt time.Time, filename, fallback string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = unsafeNameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(nameSpaces.ReplaceAllString(base, " "))
	base = strings.ReplaceAll(base, " ", "_")
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = fallback
	}
	if unsafeNameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	return fmt.Sprintf("%d_%s%s", takenAt.UnixNano(), base, ext)
}
