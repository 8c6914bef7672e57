package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"webintel-server/internal/model"
)

// Store persists generated artifacts per job and hands them back for
// download. References have the form "<jobID>/<filename>".
type Store interface {
	Save(jobID, filename string, data []byte) (string, error)
	Load(ref string) ([]byte, string, error)
	Purge(jobID string) error
}

// FileStore keeps artifacts on the local filesystem, one directory per job.
type FileStore struct {
	baseDir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		baseDir = "output"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", baseDir, err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save writes the artifact and returns its reference.
func (s *FileStore) Save(jobID, filename string, data []byte) (string, error) {
	jobID = filepath.Base(jobID)
	filename = sanitizeFilename(filename)

	dir := filepath.Join(s.baseDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return jobID + "/" + filename, nil
}

// Load reads an artifact back by its reference and returns the content and
// the bare filename for the download header.
func (s *FileStore) Load(ref string) ([]byte, string, error) {
	jobID, filename, ok := splitRef(ref)
	if !ok {
		return nil, "", fmt.Errorf("%w: malformed artifact reference %q", model.ErrNotFound, ref)
	}
	path := filepath.Join(s.baseDir, jobID, filename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", model.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, filename, nil
}

// Purge removes every artifact of the job. Missing directories are fine.
func (s *FileStore) Purge(jobID string) error {
	jobID = filepath.Base(jobID)
	if jobID == "." || jobID == string(filepath.Separator) {
		return nil
	}
	return os.RemoveAll(filepath.Join(s.baseDir, jobID))
}

// splitRef parses "<jobID>/<filename>", rejecting traversal attempts.
func splitRef(ref string) (jobID, filename string, ok bool) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	jobID = filepath.Base(parts[0])
	filename = filepath.Base(parts[1])
	if jobID == "." || jobID == ".." || filename == "." || filename == ".." {
		return "", "", false
	}
	return jobID, filename, true
}

func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == ".." {
		return "output.xlsx"
	}
	return filename
}
