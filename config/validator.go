package config

import (
	"fmt"
	"strings"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// Validate checks required settings and enumerations.
// All problems are collected and reported in a single CodeInvalidConfig error.
func (c *Config) Validate() error {
	var validationErrors []string

	required := []struct {
		key   string
		value string
	}{
		{"data_root_path", c.DataRootPath},
		{"train_mask_data_path", c.TrainMaskDataPath},
		{"val_mask_data_path", c.ValMaskDataPath},
		{"label_file", c.LabelFile},
		{"label_subset_file", c.LabelSubsetFile},
		{"dvc_remote_name", c.DVCRemoteName},
		{"dvc_remote_url", c.DVCRemoteURL},
		{"experiment_name", c.ExperimentName},
		{"info_summary_file_path", c.InfoSummaryFilePath},
		{"model_weight_path", c.ModelWeightPath},
		{"image_name", c.ImageName},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		validationErrors = append(validationErrors,
			fmt.Sprintf("missing required setting(s): %s", strings.Join(missing, ", ")))
	}

	switch c.ArtifactStore {
	case ArtifactStoreMinio, ArtifactStoreS3:
	default:
		validationErrors = append(validationErrors,
			fmt.Sprintf("artifact_store %q is not one of %q, %q", c.ArtifactStore, ArtifactStoreMinio, ArtifactStoreS3))
	}

	switch c.TrainBackend {
	case TrainBackendCommand, TrainBackendDagger:
	default:
		validationErrors = append(validationErrors,
			fmt.Sprintf("train_backend %q is not one of %q, %q", c.TrainBackend, TrainBackendCommand, TrainBackendDagger))
	}

	if err := validateArgv("dvc_command", c.DVCCommand); err != "" {
		validationErrors = append(validationErrors, err)
	}
	if err := validateArgv("train_command", c.TrainCommand); err != "" {
		validationErrors = append(validationErrors, err)
	}

	if len(validationErrors) > 0 {
		return errors.New(
			errors.CodeInvalidConfig,
			fmt.Sprintf("configuration validation failed: %s", strings.Join(validationErrors, "; ")),
		)
	}
	return nil
}

func validateArgv(key string, argv []string) string {
	for i, a := range argv {
		if strings.TrimSpace(a) == "" {
			return fmt.Sprintf("%s[%d] cannot be empty", key, i)
		}
	}
	return ""
}
