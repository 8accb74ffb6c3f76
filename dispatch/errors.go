package dispatch

import (
	"fmt"
	"strings"

	"tensor-rpc/message"
)

// UnsupportedMessageTypeError reports a message whose tag has no registered
// decoder (or a tag on the wrong side of the request/response split). Fatal
// for that one message; never silently defaulted.
type UnsupportedMessageTypeError struct {
	Type message.Type
}

func (e *UnsupportedMessageTypeError) Error() string {
	return fmt.Sprintf("dispatch: unsupported message type %s", e.Type)
}

// ErrorKind is the closed set of remote-failure classifications.
type ErrorKind int

const (
	ErrorUnknown ErrorKind = iota
	ErrorTimeout
	ErrorUnsupportedMessage
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorTimeout:
		return "TIMEOUT"
	case ErrorUnsupportedMessage:
		return "UNSUPPORTED_MESSAGE_TYPE"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Classifier maps a failed call's textual error onto an ErrorKind. The
// default implementation matches marker substrings embedded by the remote
// error-reporting path — a legacy textual contract, kept behind this
// interface so a structured error field can replace it without touching the
// codec.
type Classifier interface {
	Classify(errStr string) ErrorKind
}

// Marker strings embedded by the remote side. These form a versioned
// contract between both ends; change them in lockstep.
const (
	timeoutMarker     = "RPC ran for more than"
	timeoutMarkerAlt  = "timed out"
	unsupportedMarker = "unsupported message type"
)

// MarkerClassifier is the default substring-matching classifier.
type MarkerClassifier struct{}

// Classify is best-effort: unrecognized text falls back to ErrorUnknown.
// It never fails.
func (MarkerClassifier) Classify(errStr string) ErrorKind {
	switch {
	case strings.Contains(errStr, timeoutMarker), strings.Contains(errStr, timeoutMarkerAlt):
		return ErrorTimeout
	case strings.Contains(errStr, unsupportedMarker):
		return ErrorUnsupportedMessage
	default:
		return ErrorUnknown
	}
}

// GetRPCErrorType classifies a failed call's error text with the default
// marker classifier.
func GetRPCErrorType(errStr string) ErrorKind {
	return MarkerClassifier{}.Classify(errStr)
}

// MakeRPCError formats the combined "error-kind: message" string propagated
// to callers.
func MakeRPCError(kind ErrorKind, msg string) string {
	return kind.String() + ": " + msg
}
