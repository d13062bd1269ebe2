// Package feed imports the license registry's periodic snapshot:
// download, strip the metadata preamble, parse, classify and upsert in
// batches.
package feed

import "fmt"

// Stage names a step of an import.
type Stage string

// Import stages, in order.
const (
	StageDownload   Stage = "download"
	StagePreprocess Stage = "preprocess"
	StageParse      Stage = "parse"
	StageClassify   Stage = "classify"
	StageUpsert     Stage = "upsert"
)

// StageError is a fatal import failure and the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("feed: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(s Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: s, Err: err}
}
