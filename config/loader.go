package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"gopkg.in/yaml.v3"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// xdgRelPath is the configuration path searched in the XDG config directories.
const xdgRelPath = "posepipe/config.yaml"

// Locate returns the configuration path to load.
//
// Lookup order: explicit (if non-empty), $POSEPIPE_CONFIG, DefaultPath under the
// working directory, then posepipe/config.yaml in the XDG config directories.
// Returns a CodeNotFound error if none of them exists.
func Locate(fsys billy.Filesystem, explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv(PathEnvVar)
	}
	if explicit != "" {
		p, err := filepath.Abs(explicit)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeInvalidConfig, "failed to resolve configuration path")
		}
		if _, err := fsys.Stat(p); err != nil {
			return "", errors.WrapWithContext(err, errors.CodeNotFound, "config file not found",
				map[string]interface{}{"path": p})
		}
		return p, nil
	}

	p, err := filepath.Abs(DefaultPath)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidConfig, "failed to resolve configuration path")
	}
	if _, statErr := fsys.Stat(p); statErr == nil {
		return p, nil
	}

	if found, xdgErr := xdg.SearchConfigFile(xdgRelPath); xdgErr == nil {
		return found, nil
	}

	return "", errors.WrapWithContext(os.ErrNotExist, errors.CodeNotFound, "config file not found",
		map[string]interface{}{"path": p})
}

// Load reads, defaults and validates the configuration at path.
//
// An empty document is rejected, as is any document failing validation.
// Relative paths are resolved against the current working directory.
func Load(fsys billy.Filesystem, path string) (*Config, error) {
	data, err := util.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeNotFound, "failed to read configuration",
			map[string]interface{}{"path": path})
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to get working directory")
	}

	cfg, err := Parse(data, cwd)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeOf(err), "failed to load configuration",
			map[string]interface{}{"path": path})
	}
	cfg.source = path
	return cfg, nil
}

// Parse decodes a YAML document, applies defaults, resolves relative paths
// against base and validates the result.
func Parse(data []byte, base string) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New(errors.CodeInvalidConfig, "invalid or empty YAML configuration")
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New(errors.CodeInvalidConfig, "invalid or empty YAML configuration")
		}
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "failed to decode YAML configuration")
	}

	cfg.applyDefaults()
	cfg.resolvePaths(base)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
