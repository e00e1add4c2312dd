// Package errs defines the sentinel error taxonomy shared by every Pco
// package. Call sites build errors with Wrap, which pairs a specific
// sentinel with one of the five category sentinels and attaches an operation
// name and detail; callers distinguish failure classes with errors.Is
// against the sentinels below rather than by string matching.
package errs

import "errors"

// Kind classifies a failure into one of the five categories a Pco caller
// needs to react to differently: a bad call (InvalidConfig), a short buffer
// (InsufficientData), a corrupted stream (Corruption), a version/format
// mismatch (Incompatibility), or a bug in this library (InternalFailure).
type Kind uint8

const (
	KindInvalidConfig Kind = iota + 1
	KindInsufficientData
	KindCorruption
	KindIncompatibility
	KindInternalFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid_config"
	case KindInsufficientData:
		return "insufficient_data"
	case KindCorruption:
		return "corruption"
	case KindIncompatibility:
		return "incompatibility"
	case KindInternalFailure:
		return "internal_failure"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per Kind. Wrap attaches context while keeping
// errors.Is(err, errs.ErrXxx) working.
var (
	ErrInvalidConfig     = errors.New("pco: invalid configuration")
	ErrInsufficientData  = errors.New("pco: insufficient data")
	ErrCorruption        = errors.New("pco: corrupted stream")
	ErrIncompatibility   = errors.New("pco: incompatible format")
	ErrInternalFailure   = errors.New("pco: internal failure")
)

// More specific sentinels used throughout the codec. They are declared as
// distinct errors with no link to a category; an error built by Wrap unwraps
// to both its specific sentinel and its category sentinel, so errors.Is
// matches either.
var (
	ErrBadMagic          = errors.New("pco: bad magic bytes")
	ErrUnsupportedMode   = errors.New("pco: unsupported mode tag")
	ErrUnsupportedDtype  = errors.New("pco: unsupported dtype tag")
	ErrVersionTooNew     = errors.New("pco: format version newer than this reader supports")
	ErrTruncated         = errors.New("pco: stream truncated")
	ErrBinWeightOverflow = errors.New("pco: bin weights do not sum to table size")
	ErrEmptyChunk        = errors.New("pco: chunk has zero numbers")
	ErrTooManyBins       = errors.New("pco: bin count exceeds maximum")
)

// Wrap builds an error that satisfies errors.Is against both kind's sentinel
// and the more specific sentinel, annotated with op for diagnostics.
func Wrap(kind Kind, specific error, op string, detail string) error {
	var category error
	switch kind {
	case KindInvalidConfig:
		category = ErrInvalidConfig
	case KindInsufficientData:
		category = ErrInsufficientData
	case KindCorruption:
		category = ErrCorruption
	case KindIncompatibility:
		category = ErrIncompatibility
	default:
		category = ErrInternalFailure
	}

	return &wrapped{op: op, detail: detail, specific: specific, category: category}
}

type wrapped struct {
	op       string
	detail   string
	specific error
	category error
}

func (e *wrapped) Error() string {
	msg := e.op + ": " + e.specific.Error()
	if e.detail != "" {
		msg += " (" + e.detail + ")"
	}

	return msg
}

func (e *wrapped) Unwrap() []error { return []error{e.specific, e.category} }
