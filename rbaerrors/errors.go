// Package rbaerrors defines the typed error kinds the RBA engine can return, each carrying a
// stack trace via github.com/pkg/errors so a caller can see exactly which internal call raised
// it without losing the kind to message-string parsing.
package rbaerrors

import "github.com/pkg/errors"

var (
	errInvalidID              = errors.New("invalid id")
	errDuplicateKnownLandmark = errors.New("landmark already declared known-position")
	errMissingInitialGuess    = errors.New("unknown-position landmark observed without an initial guess")
	errInconsistentGraph      = errors.New("edge-creation policy referenced a nonexistent keyframe")
	errLinearSolveFailure     = errors.New("schur-reduced system is not positive definite")
	errNumericDivergence      = errors.New("levenberg-marquardt damping exceeded max_lambda")
)

// NewInvalidID reports a keyframe/landmark/edge id outside its arena's range.
func NewInvalidID(kind string, id int) error {
	return errors.Wrapf(errInvalidID, "%s id %d", kind, id)
}

// NewDuplicateKnownLandmark reports a landmark declared known-position more than once.
func NewDuplicateKnownLandmark(lmID int) error {
	return errors.Wrapf(errDuplicateKnownLandmark, "landmark %d", lmID)
}

// NewMissingInitialGuess reports a first observation of an unknown-position landmark that
// carried no initial relative-position guess.
func NewMissingInitialGuess(lmID int) error {
	return errors.Wrapf(errMissingInitialGuess, "landmark %d", lmID)
}

// NewInconsistentGraph reports an edge-creation policy producing an edge to a keyframe that
// does not exist.
func NewInconsistentGraph(kfID int) error {
	return errors.Wrapf(errInconsistentGraph, "keyframe %d", kfID)
}

// NewLinearSolveFailure reports a failed Cholesky factorization of the Schur-reduced system.
func NewLinearSolveFailure(lambda float64) error {
	return errors.Wrapf(errLinearSolveFailure, "at lambda=%g", lambda)
}

// NewNumericDivergence reports a Levenberg-Marquardt run whose damping grew past max_lambda
// without an accepted step. The engine retains the last-accepted state; this is non-fatal.
func NewNumericDivergence(lambda, maxLambda float64) error {
	return errors.Wrapf(errNumericDivergence, "lambda=%g exceeds max_lambda=%g", lambda, maxLambda)
}

// IsInvalidID reports whether err is (or wraps) an InvalidId error.
func IsInvalidID(err error) bool { return errors.Is(err, errInvalidID) }

// IsDuplicateKnownLandmark reports whether err is (or wraps) a DuplicateKnownLandmark error.
func IsDuplicateKnownLandmark(err error) bool { return errors.Is(err, errDuplicateKnownLandmark) }

// IsMissingInitialGuess reports whether err is (or wraps) a MissingInitialGuess error.
func IsMissingInitialGuess(err error) bool { return errors.Is(err, errMissingInitialGuess) }

// IsInconsistentGraph reports whether err is (or wraps) an InconsistentGraph error.
func IsInconsistentGraph(err error) bool { return errors.Is(err, errInconsistentGraph) }

// IsLinearSolveFailure reports whether err is (or wraps) a LinearSolveFailure error.
func IsLinearSolveFailure(err error) bool { return errors.Is(err, errLinearSolveFailure) }

// IsNumericDivergence reports whether err is (or wraps) a NumericDivergence error.
func IsNumericDivergence(err error) bool { return errors.Is(err, errNumericDivergence) }
