package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

// Environment variable names read by LoadEnv.
const (
	EnvMinioPort      = "MINIO_PORT"
	EnvMinioAccessKey = "MINIO_ACCESS_KEY"
	EnvMinioSecretKey = "MINIO_SECRET_ACCESS_KEY"
	EnvBucketName     = "MLFLOW_BUCKET_NAME"
	EnvTrackingURI    = "MLFLOW_TRACKING_URI"
	EnvGitUsername    = "GIT_USERNAME"
	EnvGitToken       = "GIT_TOKEN"
	EnvGitSSHKey      = "GIT_SSH_KEY_PATH"
	DefaultDotenvPath = ".env"
)

// Env is the process environment the stages depend on.
type Env struct {
	MinioPort      int
	MinioAccessKey Secret
	MinioSecretKey Secret
	BucketName     string

	// Optional.
	TrackingURI string
	GitUsername string
	GitToken    Secret
	GitSSHKey   string
}

// LoadEnv loads dotenvPath (if it exists) into the process environment without
// overriding variables that are already set, then reads the pipeline variables.
// Missing required variables are reported together as one CodeInvalidConfig error.
func LoadEnv(dotenvPath string) (*Env, error) {
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			if err := godotenv.Load(dotenvPath); err != nil {
				return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "failed to load dotenv file",
					map[string]interface{}{"path": dotenvPath})
			}
		}
	}
	return EnvFromLookup(os.LookupEnv)
}

// EnvFromLookup builds an Env from an arbitrary lookup function.
func EnvFromLookup(lookup func(string) (string, bool)) (*Env, error) {
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	var missing []string
	for _, key := range []string{EnvMinioPort, EnvMinioAccessKey, EnvMinioSecretKey, EnvBucketName} {
		if get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, errors.Newf(errors.CodeInvalidConfig,
			"missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(get(EnvMinioPort))
	if err != nil || port <= 0 || port > 65535 {
		return nil, errors.Newf(errors.CodeInvalidConfig, "%s must be a port number, got %q",
			EnvMinioPort, get(EnvMinioPort))
	}

	return &Env{
		MinioPort:      port,
		MinioAccessKey: Secret(get(EnvMinioAccessKey)),
		MinioSecretKey: Secret(get(EnvMinioSecretKey)),
		BucketName:     get(EnvBucketName),
		TrackingURI:    get(EnvTrackingURI),
		GitUsername:    get(EnvGitUsername),
		GitToken:       Secret(get(EnvGitToken)),
		GitSSHKey:      get(EnvGitSSHKey),
	}, nil
}

// MinioEndpoint returns host:port of the object store.
func (e *Env) MinioEndpoint(host string) string {
	return fmt.Sprintf("%s:%d", host, e.MinioPort)
}

// LogValue implements slog.LogValuer.
func (e *Env) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("minio_port", e.MinioPort),
		slog.String("bucket", e.BucketName),
		slog.String("tracking_uri", e.TrackingURI),
		slog.Bool("git_token_set", !e.GitToken.IsZero()),
	)
}
