package training

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"

	"dagger.io/dagger"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

const (
	containerWorkdir    = "/workspace"
	containerConfigPath = "/etc/posepipe/config.yaml"
)

// DaggerTrainer runs the training program inside a container through a Dagger
// engine. The training workdir is mounted read-write at /workspace and the
// tracking server and object store are reached through host tunnels when they
// listen on localhost. Nothing is exported: artifacts go to the tracking server.
type DaggerTrainer struct {
	logOutput io.Writer
	logger    *slog.Logger
}

// DaggerOption configures a DaggerTrainer.
type DaggerOption func(*DaggerTrainer)

// WithDaggerLogOutput sets where engine progress is written. Defaults to os.Stderr.
func WithDaggerLogOutput(w io.Writer) DaggerOption {
	return func(d *DaggerTrainer) { d.logOutput = w }
}

// WithDaggerLogger sets the logger.
func WithDaggerLogger(l *slog.Logger) DaggerOption {
	return func(d *DaggerTrainer) { d.logger = l }
}

// NewDaggerTrainer creates a DaggerTrainer.
func NewDaggerTrainer(opts ...DaggerOption) *DaggerTrainer {
	d := &DaggerTrainer{logOutput: os.Stderr}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// tunnel exposes a host port to the container under alias.
type tunnel struct {
	alias string
	port  int
}

// containerPlan is the container invocation derived from a Request.
type containerPlan struct {
	image   string
	argv    []string
	env     map[string]string
	secrets map[string]string
	tunnels []tunnel
}

func planContainer(req Request) (*containerPlan, error) {
	if len(req.Config.TrainCommand) == 0 {
		return nil, errors.New(errors.CodeInvalidConfig, "train_command cannot be empty")
	}

	t := req.Tracking
	plan := &containerPlan{image: req.Config.TrainImage}

	trackingURI, trackingTunnel, err := tunnelURL(t.TrackingURI, "mlflow")
	if err != nil {
		return nil, err
	}
	s3URL, s3Tunnel, err := tunnelURL(t.S3EndpointURL, "minio")
	if err != nil {
		return nil, err
	}
	for _, tn := range []*tunnel{trackingTunnel, s3Tunnel} {
		if tn != nil {
			plan.tunnels = append(plan.tunnels, *tn)
		}
	}

	plan.env = map[string]string{
		"MLFLOW_TRACKING_URI":    trackingURI,
		"MLFLOW_S3_ENDPOINT_URL": s3URL,
		"MLFLOW_EXPERIMENT_NAME": req.ExperimentName,
	}
	plan.secrets = map[string]string{
		"AWS_ACCESS_KEY_ID":     t.AccessKey.Reveal(),
		"AWS_SECRET_ACCESS_KEY": t.SecretKey.Reveal(),
	}

	plan.argv = append(append([]string(nil), req.Config.TrainCommand...),
		"--experiment-name", req.ExperimentName,
		"--run-name", req.RunName,
	)
	if req.Config.Source() != "" {
		plan.argv = append(plan.argv, "--config", containerConfigPath)
	}
	return plan, nil
}

// tunnelURL rewrites a URL pointing at the host's loopback interface so it
// points at alias instead, and returns the tunnel that makes alias reachable.
func tunnelURL(raw, alias string) (string, *tunnel, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid URL %q", raw)
	}
	host := u.Hostname()
	if host != "localhost" && !isLoopback(host) {
		return raw, nil, nil
	}

	port := u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return "", nil, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid port in %q", raw)
	}
	u.Host = net.JoinHostPort(alias, port)
	return u.String(), &tunnel{alias: alias, port: n}, nil
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Train implements Trainer.
func (d *DaggerTrainer) Train(ctx context.Context, req Request) error {
	plan, err := planContainer(req)
	if err != nil {
		return err
	}

	client, err := dagger.Connect(ctx, dagger.WithLogOutput(d.logOutput))
	if err != nil {
		return errors.Wrap(err, errors.CodeExecutionFailed, "failed to connect to dagger engine")
	}
	defer client.Close()

	ctr := client.Container().
		From(plan.image).
		WithMountedDirectory(containerWorkdir, client.Host().Directory(req.Config.TrainWorkdir)).
		WithWorkdir(containerWorkdir)

	if src := req.Config.Source(); src != "" {
		ctr = ctr.WithMountedFile(containerConfigPath, client.Host().File(src))
	}

	for _, tn := range plan.tunnels {
		svc := client.Host().Service([]dagger.PortForward{{Backend: tn.port, Frontend: tn.port}})
		ctr = ctr.WithServiceBinding(tn.alias, svc)
	}

	for _, k := range sortedKeys(plan.env) {
		ctr = ctr.WithEnvVariable(k, plan.env[k])
	}
	for _, k := range sortedKeys(plan.secrets) {
		ctr = ctr.WithSecretVariable(k, client.SetSecret(k, plan.secrets[k]))
	}

	d.logger.Info("running training container", "image", plan.image, "argv", plan.argv)
	if _, err := ctr.WithExec(plan.argv).Sync(ctx); err != nil {
		return errors.WrapWithContext(err, errors.CodeExecutionFailed, "training container failed",
			map[string]interface{}{"image": plan.image})
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Trainer = (*DaggerTrainer)(nil)
