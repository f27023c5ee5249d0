package labels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/go-git/go-billy/v5"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

const progressTemplate pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }}`

// WriteOption configures WriteSubset.
type WriteOption func(*writeOptions)

type writeOptions struct {
	progress io.Writer
}

// WithProgress sets where the progress bar is drawn. Defaults to os.Stderr;
// io.Discard disables it.
func WithProgress(w io.Writer) WriteOption {
	return func(o *writeOptions) { o.progress = w }
}

// Encode renders records as the label file document, indented by two spaces.
// Identical records always produce identical bytes.
func Encode(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(File{Root: records}); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to encode label records")
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// WriteSubset writes records as a label file at path and returns path.
// The document is built in memory and written in one call; the progress bar
// counts records.
func WriteSubset(fsys billy.Filesystem, records []Record, path string, opts ...WriteOption) (string, error) {
	o := writeOptions{progress: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	data, err := Encode(records)
	if err != nil {
		return "", err
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.WrapWithContext(err, errors.CodeStorage, "failed to create label directory",
			map[string]interface{}{"path": path})
	}

	bar := progressTemplate.New(len(records))
	bar.SetWriter(o.progress)
	bar.Set("prefix", "Generating label file")
	bar.Start()
	defer bar.Finish()

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", errors.WrapWithContext(err, errors.CodeStorage, "failed to create label file",
			map[string]interface{}{"path": path})
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", errors.WrapWithContext(err, errors.CodeStorage, "failed to write label file",
			map[string]interface{}{"path": path})
	}
	if err := f.Close(); err != nil {
		return "", errors.WrapWithContext(err, errors.CodeStorage, "failed to write label file",
			map[string]interface{}{"path": path})
	}
	bar.SetCurrent(int64(len(records)))

	return path, nil
}

// String describes the partition sizes, for logs.
func (dp *DataPaths) String() string {
	return fmt.Sprintf("train=%d validation=%d", dp.Train.Len(), dp.Validation.Len())
}
