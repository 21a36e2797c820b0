package miner

import (
	"errors"
	"fmt"
)

var (
	ErrNoAccountAvailable    = errors.New("no account available on the node")
	ErrConnectionFailed      = errors.New("connection failed")
	ErrNotConnected          = errors.New("miner is not connected")
	ErrEnumerationFailed     = errors.New("model enumeration failed")
	ErrWorkspaceFailed       = errors.New("failed to prepare training workspace")
	ErrDownloadFailed        = errors.New("model download failed")
	ErrTrainingFailed        = errors.New("training failed")
	ErrUploadFailed          = errors.New("gradient upload failed")
	ErrUploadResultMissing   = errors.New("upload response has no entry for the gradient")
	ErrAmbiguousUploadResult = errors.New("upload response has several entries for the gradient")
	ErrSubmissionFailed      = errors.New("gradient submission failed")
	ErrInvalidContract       = errors.New("invalid contract address")
)

// TrainingFailedError carries the exit code of the trainer. Code is -1 when
// the trainer did not run to completion.
type TrainingFailedError struct {
	Code int
	Err  error
}

func (e *TrainingFailedError) Error() string {
	if e.Err != nil && e.Code < 0 {
		return fmt.Sprintf("training failed: %s", e.Err)
	}

	return fmt.Sprintf("training failed, code=%d", e.Code)
}

func (e *TrainingFailedError) Is(target error) bool {
	return target == ErrTrainingFailed
}

func (e *TrainingFailedError) Unwrap() error {
	return e.Err
}
