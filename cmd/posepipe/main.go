// Command posepipe runs the pose-estimation training pipeline: data
// versioning, training, weight validation and image publishing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/subcommands"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/executor"
)

// LogLevelEnvVar selects the log level: debug, info, warn or error.
const LogLevelEnvVar = "POSEPIPE_LOG_LEVEL"

func main() {
	logger := newLogger(os.Getenv(LogLevelEnvVar))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := &app{
		logger:   logger,
		fs:       osfs.New("/"),
		runner:   executor.NewLocalRunner(logger),
		stdout:   os.Stdout,
		progress: os.Stderr,
	}

	cmdr := subcommands.NewCommander(flag.CommandLine, "posepipe")
	register(cmdr)
	flag.Parse()

	os.Exit(int(cmdr.Execute(ctx, a)))
}

func register(cmdr *subcommands.Commander) {
	cmdr.Register(cmdr.HelpCommand(), "")
	cmdr.Register(cmdr.FlagsCommand(), "")
	cmdr.Register(cmdr.CommandsCommand(), "")

	cmdr.Register(&runCmd{}, "pipeline")
	cmdr.Register(&subsetCmd{}, "stages")
	cmdr.Register(&versionDataCmd{}, "stages")
	cmdr.Register(&trainCmd{}, "stages")
	cmdr.Register(&validateCmd{}, "stages")
	cmdr.Register(&publishCmd{}, "stages")
	cmdr.Register(&initSummaryCmd{}, "setup")
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(level)}))
}

// parseLevel maps a level name to a slog.Level. Unknown names mean info.
func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
