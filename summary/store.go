package summary

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// InitHint is appended to the error returned for a missing summary file.
const InitHint = "run `posepipe init-summary` to create it"

// Store reads and writes the summary file at one path.
type Store struct {
	fs   billy.Filesystem
	path string
}

// NewStore returns a Store for path on fsys.
func NewStore(fsys billy.Filesystem, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// Path returns the summary file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the summary file is present.
func (s *Store) Exists() (bool, error) {
	_, err := s.fs.Stat(s.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.WrapWithContext(err, errors.CodeStorage, "failed to stat summary",
		map[string]interface{}{"path": s.path})
}

// Load reads the summary. A missing file is a CodeNotFound error.
func (s *Store) Load() (*Summary, error) {
	data, err := util.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WrapWithContext(err, errors.CodeNotFound, "summary file not found; "+InitHint,
				map[string]interface{}{"path": s.path})
		}
		return nil, errors.WrapWithContext(err, errors.CodeStorage, "failed to read summary",
			map[string]interface{}{"path": s.path})
	}

	sum, err := Decode(data)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidInput, "invalid summary file",
			map[string]interface{}{"path": s.path})
	}
	return sum, nil
}

// Save replaces the summary file with sum. The document is written to a
// temporary file in the same directory and renamed over the old one.
func (s *Store) Save(sum *Summary) (err error) {
	data, err := Encode(sum)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWithContext(err, errors.CodeStorage, "failed to create summary directory",
			map[string]interface{}{"path": dir})
	}

	tmp, err := s.fs.TempFile(dir, "."+filepath.Base(s.path)+"-")
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeStorage, "failed to create temporary summary",
			map[string]interface{}{"path": s.path})
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp.Name())
		}
	}()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeStorage, "failed to write summary",
			map[string]interface{}{"path": s.path})
	}

	if err = s.replace(tmp.Name()); err != nil {
		return errors.WrapWithContext(err, errors.CodeStorage, "failed to replace summary",
			map[string]interface{}{"path": s.path})
	}
	return nil
}

// replace renames from over the summary file. When the filesystem refuses to
// rename over an existing file, the old summary is moved aside first and put
// back if the second rename fails too.
func (s *Store) replace(from string) error {
	err := s.fs.Rename(from, s.path)
	if err == nil {
		return nil
	}
	if _, statErr := s.fs.Stat(s.path); statErr != nil {
		return err
	}

	backup := from + ".old"
	if mvErr := s.fs.Rename(s.path, backup); mvErr != nil {
		return err
	}
	if err := s.fs.Rename(from, s.path); err != nil {
		_ = s.fs.Rename(backup, s.path)
		return err
	}
	_ = s.fs.Remove(backup)
	return nil
}
