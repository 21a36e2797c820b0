package trainer

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrStartFailed = errors.New("failed to start trainer")
	ErrTimeout     = errors.New("trainer timed out")
	ErrEmptyModule = errors.New("empty trainer module path")
)

// Job is one invocation of the trainer.
type Job struct {
	ModelPath    string
	InputPath    string
	TargetPath   string
	GradientPath string
}

// Args returns the trainer flags for the job.
func (j Job) Args() []string {
	return []string{
		"-model", j.ModelPath,
		"-input_data", j.InputPath,
		"-target_data", j.TargetPath,
		"-gradient", j.GradientPath,
	}
}

// Runner runs a trainer to completion. A non-zero exit is reported as
// *ExitError.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("trainer exited with code %d", e.Code)
}
