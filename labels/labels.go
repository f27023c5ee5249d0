// Package labels reads the annotation label file, partitions it into training
// and validation sets and writes subset label files.
//
// The label file is a JSON object with a single "root" array of records:
//
//	{"root": [{"img_paths": "train2017/000000000036.jpg", "isValidation": 0.0, ...}, ...]}
package labels

import (
	"encoding/json"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// File is the on-disk shape of a label file.
type File struct {
	Root []Record `json:"root"`
}

// Partition holds three parallel sequences: image path, mask path and the
// record they were derived from share an index.
type Partition struct {
	Images []string
	Masks  []string
	Meta   []Record
}

// Len returns the number of records in the partition.
func (p *Partition) Len() int {
	return len(p.Meta)
}

func (p *Partition) add(image, mask string, r Record) {
	p.Images = append(p.Images, image)
	p.Masks = append(p.Masks, mask)
	p.Meta = append(p.Meta, r)
}

// DataPaths is the result of Retrieve.
type DataPaths struct {
	Train      Partition
	Validation Partition
}

// Retrieve parses <dataRoot>/<labelFile> and partitions every record by its
// validation flag, deriving image and mask paths along the way.
func Retrieve(fsys billy.Filesystem, dataRoot, trainMaskDir, valMaskDir, labelFile string) (*DataPaths, error) {
	path := filepath.Join(dataRoot, labelFile)
	records, err := ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	var dp DataPaths
	for _, r := range records {
		image := filepath.Join(dataRoot, r.ImagePath)
		if r.Validation.IsTrain() {
			dp.Train.add(image, MaskPath(trainMaskDir, r.ImagePath), r)
		} else {
			dp.Validation.add(image, MaskPath(valMaskDir, r.ImagePath), r)
		}
	}
	return &dp, nil
}

// ReadFile reads the records of the label file at path.
func ReadFile(fsys billy.Filesystem, path string) ([]Record, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeNotFound, "failed to read label file",
			map[string]interface{}{"path": path})
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidInput, "malformed label file",
			map[string]interface{}{"path": path})
	}
	root, ok := raw["root"]
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidInput, "label file %s has no \"root\" array", path)
	}

	var records []Record
	if err := json.Unmarshal(root, &records); err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidInput, "malformed label file",
			map[string]interface{}{"path": path})
	}
	return records, nil
}

// MaskPath builds the mask file path for an image: maskDir concatenated with
// the 12 characters preceding the 4-character extension, plus ".jpg".
// COCO names like "train2017/000000000036.jpg" yield "<maskDir>000000000036.jpg".
//
// Shorter names are clamped rather than rejected, so they produce a
// well-formed but probably wrong path.
func MaskPath(maskDir, imagePath string) string {
	runes := []rune(imagePath)
	n := len(runes)
	start := max(n-16, 0)
	end := max(n-4, 0)
	return maskDir + string(runes[start:end]) + ".jpg"
}

// Head returns the first n records. A negative n returns all of them.
func Head(records []Record, n int) []Record {
	if n < 0 || n >= len(records) {
		return records
	}
	return records[:n]
}
