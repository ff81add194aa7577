// Package storage manages the flat audio and contracts folders.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TimestampLayout names uploads and contracts, e.g. 20250304_101500.
const TimestampLayout = "20060102_150405"

// ErrNotFound is returned by Lookup for missing or invalid names.
var ErrNotFound = errors.New("File not found")

// Files owns the audio and contracts directories.
type Files struct {
	AudioDir     string
	ContractsDir string
	now          func() time.Time
}

// NewFiles creates both directories when missing.
func NewFiles(audioDir, contractsDir string) (*Files, error) {
	for _, dir := range []string{audioDir, contractsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}
	return &Files{AudioDir: audioDir, ContractsDir: contractsDir, now: time.Now}, nil
}

// Timestamp is the current time in TimestampLayout.
func (f *Files) Timestamp() string {
	return f.now().Format(TimestampLayout)
}

// Stamp names the files of one upload: the timestamp plus a short random
// suffix, so uploads within the same second do not overwrite each other.
func (f *Files) Stamp() string {
	return f.Timestamp() + "_" + uuid.NewString()[:8]
}

// SafeName replaces path separators so an uploaded name stays in one folder.
func SafeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(name)
}

// SaveAudio copies an upload to audio/<ts>_<name> and returns its path.
func (f *Files) SaveAudio(ts, name string, r io.Reader) (string, error) {
	path := filepath.Join(f.AudioDir, ts+"_"+SafeName(name))
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create audio file")
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "save audio")
	}
	if err := out.Close(); err != nil {
		return "", errors.Wrap(err, "save audio")
	}
	return path, nil
}

// ContractFile returns the file name and path for the contract generated at ts.
func (f *Files) ContractFile(ts string) (name, path string) {
	name = "contract_" + ts + ".pdf"
	return name, filepath.Join(f.ContractsDir, name)
}

// Lookup resolves a contract file name. Anything other than a plain file
// name inside the contracts folder is reported as not found.
func (f *Files) Lookup(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", ErrNotFound
	}
	path := filepath.Join(f.ContractsDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return path, nil
}
