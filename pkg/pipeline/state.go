package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// State is a step of the driver.
type State int

const (
	ResolvingInput State = iota
	ExportingMetadata
	FilteringVolume
	ExtractingSurface
	FilteringMesh
	WritingOutput
	Done
	Failed
)

var stateNames = map[State]string{
	ResolvingInput:    "resolving input",
	ExportingMetadata: "exporting metadata",
	FilteringVolume:   "filtering volume",
	ExtractingSurface: "extracting surface",
	FilteringMesh:     "filtering mesh",
	WritingOutput:     "writing output",
	Done:              "done",
	Failed:            "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Kind classifies a failure. Every kind has its own exit code.
type Kind int

const (
	KindGeneric Kind = iota
	KindModality
	KindThreshold
	KindNoInput
	KindExtraction
	KindMeshFilter
	KindWrite
)

// Kinds lists every failure kind.
var Kinds = []Kind{KindGeneric, KindModality, KindThreshold, KindNoInput, KindExtraction, KindMeshFilter, KindWrite}

var kindInfo = map[Kind]struct {
	name string
	code int
}{
	KindGeneric:    {"generic failure", 2},
	KindModality:   {"modality mismatch", 1},
	KindThreshold:  {"bad threshold", 3},
	KindNoInput:    {"no valid input", 4},
	KindExtraction: {"extraction error", 5},
	KindMeshFilter: {"mesh filter error", 6},
	KindWrite:      {"write error", 7},
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code is the process exit code for k.
func (k Kind) Code() int {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return kindInfo[KindGeneric].code
}

// FailureError is returned by Run when the driver enters Failed.
type FailureError struct {
	State State
	Kind  Kind
	Err   error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s while %s: %v", e.Kind, e.State, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// ExitCode maps a Run error to a process exit code: 0 for nil, the kind's
// code for a FailureError and the generic code for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var failure *FailureError
	if errors.As(err, &failure) {
		return failure.Kind.Code()
	}
	return KindGeneric.Code()
}
