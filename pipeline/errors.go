package pipeline

import (
	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

func missingStage(task string) error {
	return errors.Newf(errors.CodeInternal, "no component configured for %s", task)
}
