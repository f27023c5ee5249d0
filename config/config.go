// Package config provides loading, defaulting and validation of the pipeline
// configuration defined in YAML, plus the process environment the stages need.
//
// The configuration is a flat document of named settings. It is loaded once at
// startup into an immutable Config value and passed explicitly to every stage.
//
// # Basic Usage
//
//	fsys := osfs.New("/")
//	path, err := config.Locate(fsys, "")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg, err := config.Load(fsys, path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	env, err := config.LoadEnv(".env")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Relative paths inside the document are resolved against the working
// directory at load time, so a Config never depends on a later chdir.
package config

import (
	"path/filepath"
)

// DefaultPath is where the configuration is looked up relative to the working directory.
const DefaultPath = "config/config.yaml"

// PathEnvVar overrides DefaultPath when set.
const PathEnvVar = "POSEPIPE_CONFIG"

// Artifact store backends.
const (
	ArtifactStoreMinio = "minio"
	ArtifactStoreS3    = "s3"
)

// Training backends.
const (
	TrainBackendCommand = "command"
	TrainBackendDagger  = "dagger"
)

// Config holds every named setting of the pipeline.
// Field names mirror the YAML keys; the zero value is not usable, use Load.
type Config struct {
	// Data layout.
	DataRootPath      string `yaml:"data_root_path"`
	TrainMaskDataPath string `yaml:"train_mask_data_path"`
	ValMaskDataPath   string `yaml:"val_mask_data_path"`
	LabelFile         string `yaml:"label_file"`
	LabelSubsetFile   string `yaml:"label_subset_file"`

	// Data versioning.
	DVCCommand     []string `yaml:"dvc_command"`
	DVCRemoteName  string   `yaml:"dvc_remote_name"`
	DVCRemoteURL   string   `yaml:"dvc_remote_url"`
	GitRemote      string   `yaml:"git_remote"`
	GitBranch      string   `yaml:"git_branch"`
	GitAuthorName  string   `yaml:"git_author_name"`
	GitAuthorEmail string   `yaml:"git_author_email"`

	// Experiment tracking and weights.
	ExperimentName      string `yaml:"experiment_name"`
	MLflowTrackingURI   string `yaml:"mlflow_tracking_uri"`
	InfoSummaryFilePath string `yaml:"info_summary_file_path"`
	ModelWeightPath     string `yaml:"model_weight_path"`
	WeightArtifactPath  string `yaml:"weight_artifact_path"`
	ValLossTag          string `yaml:"val_loss_tag"`

	// Object store.
	ArtifactStore string `yaml:"artifact_store"`
	MinioHost     string `yaml:"minio_host"`
	MinioSecure   bool   `yaml:"minio_secure"`
	S3Region      string `yaml:"s3_region"`

	// Training.
	TrainBackend string   `yaml:"train_backend"`
	TrainCommand []string `yaml:"train_command"`
	TrainImage   string   `yaml:"train_image"`
	TrainWorkdir string   `yaml:"train_workdir"`

	// Image publishing.
	ImageName   string `yaml:"image_name"`
	ComposeFile string `yaml:"compose_file"`
	VerifyPush  bool   `yaml:"verify_push"`

	// Extra keeps settings owned by the training routine (epochs, learning
	// rate, ...). The pipeline passes them through untouched.
	Extra map[string]interface{} `yaml:",inline"`

	// source is the file the configuration was read from.
	source string
}

// Source returns the path the configuration was loaded from.
func (c *Config) Source() string {
	return c.source
}

// LabelFilePath is the full path of the label JSON file.
func (c *Config) LabelFilePath() string {
	return filepath.Join(c.DataRootPath, c.LabelFile)
}

// LabelSubsetFilePath is the full path of the subset label file, which is also
// the artifact placed under data version control.
func (c *Config) LabelSubsetFilePath() string {
	return filepath.Join(c.DataRootPath, c.LabelSubsetFile)
}

// applyDefaults sets default values for any unset optional fields.
func (c *Config) applyDefaults() {
	if len(c.DVCCommand) == 0 {
		c.DVCCommand = []string{"dvc"}
	}
	if c.GitRemote == "" {
		c.GitRemote = "origin"
	}
	if c.GitBranch == "" {
		c.GitBranch = "dev"
	}
	if c.GitAuthorName == "" {
		c.GitAuthorName = "posepipe"
	}
	if c.GitAuthorEmail == "" {
		c.GitAuthorEmail = "posepipe@localhost"
	}
	if c.MLflowTrackingURI == "" {
		c.MLflowTrackingURI = "http://localhost:5000"
	}
	if c.WeightArtifactPath == "" {
		c.WeightArtifactPath = "model_state_dict_best/state_dict.pth"
	}
	if c.ValLossTag == "" {
		c.ValLossTag = "val_loss"
	}
	if c.ArtifactStore == "" {
		c.ArtifactStore = ArtifactStoreMinio
	}
	if c.MinioHost == "" {
		c.MinioHost = "localhost"
	}
	if c.S3Region == "" {
		c.S3Region = "us-east-1"
	}
	if c.TrainBackend == "" {
		c.TrainBackend = TrainBackendCommand
	}
	if len(c.TrainCommand) == 0 {
		c.TrainCommand = []string{"python", "train.py"}
	}
	if c.TrainImage == "" {
		c.TrainImage = "python:3.11-slim"
	}
	if c.TrainWorkdir == "" {
		c.TrainWorkdir = "."
	}
	if c.ComposeFile == "" {
		c.ComposeFile = "docker-compose-app-cpu.yaml"
	}
}

// resolvePaths makes filesystem paths absolute against base.
// Mask directories are left untouched: mask paths are built by plain string
// concatenation and keep whatever separator convention the file uses.
func (c *Config) resolvePaths(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	c.DataRootPath = abs(c.DataRootPath)
	c.InfoSummaryFilePath = abs(c.InfoSummaryFilePath)
	c.ModelWeightPath = abs(c.ModelWeightPath)
	c.TrainWorkdir = abs(c.TrainWorkdir)
	c.ComposeFile = abs(c.ComposeFile)
}
