package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoTargets indica que no hay edge nodes para una réplica.
var ErrNoTargets = errors.New("pipeline: no distribution targets")

// ErrEmptyRendition indica un Transcoder que respondió sin error pero sin URI.
var ErrEmptyRendition = errors.New("pipeline: transcoder returned an empty rendition")

// TranscodeFailure es la falla de una réplica en la etapa transcode.
type TranscodeFailure struct {
	Pair Pair
	Err  error
}

func (e *TranscodeFailure) Error() string {
	return fmt.Sprintf("transcode %s: %v", e.Pair, e.Err)
}

func (e *TranscodeFailure) Unwrap() error { return e.Err }

// DistributionFailure es la falla de una réplica en replicate o distribute.
type DistributionFailure struct {
	Pair    Pair
	Stage   Stage
	Targets []string
	Err     error
}

func (e *DistributionFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Pair, e.Err)
}

func (e *DistributionFailure) Unwrap() error { return e.Err }
