package readers

import (
	"fmt"

	"github.com/estategraph/estate-engine/pkg/apperrors"
)

type sourceMissingError struct {
	path  string
	cause error
}

func (e *sourceMissingError) Error() string {
	return fmt.Sprintf("%v: %s (%v)", apperrors.ErrSourceMissing, e.path, e.cause)
}

func (e *sourceMissingError) Unwrap() error { return apperrors.ErrSourceMissing }

type sourceUnparseableError struct {
	path  string
	cause error
}

func (e *sourceUnparseableError) Error() string {
	return fmt.Sprintf("%v: %s (%v)", apperrors.ErrSourceUnparseable, e.path, e.cause)
}

func (e *sourceUnparseableError) Unwrap() error { return apperrors.ErrSourceUnparseable }
