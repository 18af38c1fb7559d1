package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal pipeline failure.
type Kind string

const (
	KindConfig    Kind = "config"
	KindTransport Kind = "transport"
	KindParse     Kind = "parse"
	KindData      Kind = "data"
	KindStorage   Kind = "storage"
	KindPublish   Kind = "publish"
)

// ErrRunInProgress is returned when a run is triggered while another is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// Error is a fatal failure in one pipeline stage.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func stageError(stage string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind of a pipeline error, or "" if err is not one.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}
