package recon

import (
	"errors"
	"fmt"
)

// Stage names the step at which an image failed.
type Stage string

const (
	StageLoad       Stage = "load"
	StageInference  Stage = "inference"
	StageStoreRead  Stage = "store-read"
	StageStoreWrite Stage = "store-write"
	StageVerify     Stage = "verify"
	StageSidecar    Stage = "sidecar"
)

var (
	ErrLoad         = errors.New("image load failed")
	ErrInference    = errors.New("inference failed")
	ErrStoreRead    = errors.New("metadata read failed")
	ErrStoreWrite   = errors.New("metadata write failed")
	ErrVerification = errors.New("verification failed")
	ErrSidecar      = errors.New("sidecar failed")
)

var stageErrs = map[Stage]error{
	StageLoad:       ErrLoad,
	StageInference:  ErrInference,
	StageStoreRead:  ErrStoreRead,
	StageStoreWrite: ErrStoreWrite,
	StageVerify:     ErrVerification,
	StageSidecar:    ErrSidecar,
}

// Error attributes a failure to one file and one stage.
type Error struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Stage, e.Err)
}

// Unwrap exposes the stage sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{stageErrs[e.Stage], e.Err}
}

func fail(path string, s Stage, err error) *Error {
	return &Error{Path: path, Stage: s, Err: err}
}

// StageOf returns the stage of a failure, or "" when err did not come from the engine.
func StageOf(err error) Stage {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return ""
}
