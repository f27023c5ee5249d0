package labels

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

const (
	keyImagePath  = "img_paths"
	keyValidation = "isValidation"
)

// Record is one annotation entry of the label file.
//
// Only img_paths and isValidation are interpreted. Every field, including
// those two, is kept as raw JSON so the record is written back verbatim.
type Record struct {
	ImagePath  string
	Validation ValidationFlag

	fields map[string]json.RawMessage
}

// ValidationFlag is the raw isValidation value. Label files in the wild
// use 0/1, 0.0/1.0 and false/true.
type ValidationFlag json.RawMessage

// IsTrain reports whether the flag equals zero: the number 0 or false.
// Anything else, including null and strings, marks a validation record.
func (f ValidationFlag) IsTrain() bool {
	s := string(bytes.TrimSpace(f))
	if s == "false" {
		return true
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n == 0
	}
	return false
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "label record is not a JSON object")
	}

	rawPath, ok := fields[keyImagePath]
	if !ok {
		return errors.Newf(errors.CodeInvalidInput, "label record has no %q field", keyImagePath)
	}
	var imagePath string
	if err := json.Unmarshal(rawPath, &imagePath); err != nil {
		return errors.Wrapf(err, errors.CodeInvalidInput, "label record field %q is not a string", keyImagePath)
	}

	rawFlag, ok := fields[keyValidation]
	if !ok {
		return errors.Newf(errors.CodeInvalidInput, "label record %q has no %q field", imagePath, keyValidation)
	}

	*r = Record{
		ImagePath:  imagePath,
		Validation: ValidationFlag(rawFlag),
		fields:     fields,
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Keys are emitted in sorted order.
func (r Record) MarshalJSON() ([]byte, error) {
	fields := r.fields
	if fields == nil {
		path, err := json.Marshal(r.ImagePath)
		if err != nil {
			return nil, err
		}
		flag := json.RawMessage(r.Validation)
		if len(flag) == 0 {
			flag = json.RawMessage("0")
		}
		fields = map[string]json.RawMessage{keyImagePath: path, keyValidation: flag}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Field returns the raw value of key.
func (r Record) Field(key string) (json.RawMessage, bool) {
	v, ok := r.fields[key]
	return v, ok
}
