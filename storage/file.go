package storage

import (
	"io"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/go-git/go-billy/v5"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// writeFile copies r to dest through a temporary sibling file. size is only
// used for the progress bar; -1 means unknown.
func writeFile(o options, dest string, r io.Reader, size int64) (n int64, err error) {
	fsys := o.fs
	dir := filepath.Dir(dest)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return 0, errors.WrapWithContext(err, errors.CodeStorage, "failed to create weight directory",
			map[string]interface{}{"path": dir})
	}

	tmp, err := fsys.TempFile(dir, "."+filepath.Base(dest)+"-")
	if err != nil {
		return 0, errors.WrapWithContext(err, errors.CodeStorage, "failed to create temporary file",
			map[string]interface{}{"dir": dir})
	}
	defer func() {
		if err != nil {
			_ = fsys.Remove(tmp.Name())
		}
	}()

	if o.progress != nil {
		bar := pb.New64(size)
		bar.Set(pb.Bytes, true)
		bar.SetWriter(o.progress)
		bar.Start()
		defer bar.Finish()
		r = bar.NewProxyReader(r)
	}

	n, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.WrapWithContext(err, errors.CodeStorage, "failed to write object",
			map[string]interface{}{"path": dest})
	}

	if err = renameOver(fsys, tmp.Name(), dest); err != nil {
		return n, errors.WrapWithContext(err, errors.CodeStorage, "failed to move object into place",
			map[string]interface{}{"path": dest})
	}
	return n, nil
}

// renameOver renames from to to, replacing to if it exists. Some billy
// implementations refuse to rename over an existing file; the old file is
// then moved aside and restored if the second rename fails.
func renameOver(fsys billy.Filesystem, from, to string) error {
	err := fsys.Rename(from, to)
	if err == nil {
		return nil
	}
	if _, statErr := fsys.Stat(to); statErr != nil {
		return err
	}

	backup := from + ".old"
	if mvErr := fsys.Rename(to, backup); mvErr != nil {
		return err
	}
	if err := fsys.Rename(from, to); err != nil {
		_ = fsys.Rename(backup, to)
		return err
	}
	_ = fsys.Remove(backup)
	return nil
}
