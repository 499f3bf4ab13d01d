package griderror

import (
	"errors"
	"fmt"
)

const (
	GRID_UNEXPECTED          = "GRIDU"
	GRID_BAD_REQUEST         = "GRIDB"
	GRID_INVALID_ARGUMENT    = "GRIDA"
	GRID_INVALID_STATE       = "GRIDS"
	GRID_SERVER_ERROR        = "GRIDE"
	GRID_METADATA_CORRUPTION = "GRIDM"
	GRID_NOT_FOUND           = "GRIDN"
	GRID_INSUFFICIENT_NODES  = "GRIDI"
)

var existingErrorCodeMap = map[string]string{
	GRID_BAD_REQUEST:         "bad request",
	GRID_INVALID_ARGUMENT:    "invalid argument",
	GRID_INVALID_STATE:       "invalid state",
	GRID_SERVER_ERROR:        "server error",
	GRID_METADATA_CORRUPTION: "metadata corruption",
	GRID_NOT_FOUND:           "not found",
	GRID_INSUFFICIENT_NODES:  "insufficient nodes",
}

func GetMessageByCode(errorCode string) string {
	rep, ok := existingErrorCodeMap[errorCode]
	if ok {
		return rep
	}
	return "unexpected error"
}

var _ error = &GridError{}

type GridError struct {
	Err error

	ErrorCode string
}

func New(errorCode string, errorMsg string) *GridError {
	return &GridError{
		Err:       errors.New(errorMsg),
		ErrorCode: errorCode,
	}
}

func Newf(errorCode string, format string, a ...any) *GridError {
	return &GridError{
		Err:       fmt.Errorf(format, a...),
		ErrorCode: errorCode,
	}
}

func NewByCode(errorCode string) *GridError {
	return New(errorCode, GetMessageByCode(errorCode))
}

// Wrap attaches a code to err, prefixing the message with msg when it is
// not empty. A nil err yields nil.
func Wrap(errorCode string, err error, msg string) *GridError {
	if err == nil {
		return nil
	}
	if msg == "" {
		return &GridError{Err: err, ErrorCode: errorCode}
	}
	return &GridError{
		Err:       fmt.Errorf("%s: %w", msg, err),
		ErrorCode: errorCode,
	}
}

func (er *GridError) Error() string {
	return er.Err.Error()
}

func (er *GridError) Unwrap() error {
	return er.Err
}

// CodeOf returns the code of the outermost GridError in the chain, or
// GRID_UNEXPECTED for any other error.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ge *GridError
	if errors.As(err, &ge) {
		return ge.ErrorCode
	}
	return GRID_UNEXPECTED
}

func IsBadRequest(err error) bool {
	code := CodeOf(err)
	return code == GRID_BAD_REQUEST || code == GRID_INVALID_ARGUMENT
}

func IsInvalidState(err error) bool {
	return CodeOf(err) == GRID_INVALID_STATE
}

func IsNotFound(err error) bool {
	return CodeOf(err) == GRID_NOT_FOUND
}

func IsServerError(err error) bool {
	switch CodeOf(err) {
	case GRID_SERVER_ERROR, GRID_INSUFFICIENT_NODES, GRID_METADATA_CORRUPTION, GRID_UNEXPECTED:
		return true
	}
	return false
}

// AsServerError keeps classified errors as they are and turns anything
// else into a GRID_SERVER_ERROR.
func AsServerError(err error) error {
	if err == nil {
		return nil
	}
	var ge *GridError
	if errors.As(err, &ge) {
		return err
	}
	return Wrap(GRID_SERVER_ERROR, err, "")
}
