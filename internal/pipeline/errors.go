package pipeline

import (
	"fmt"

	"github.com/elbartohub/myWhisper/internal/job"
)

// StageError marks a pipeline failure with the stage it happened in, so
// logs and job records name where the work stopped.
type StageError struct {
	Stage job.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
