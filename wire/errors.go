package wire

import "fmt"

// FormatError reports a malformed wire buffer: header lengths inconsistent
// with the actual buffer size, a truncated or undecodable metadata table, or
// a section claiming more bytes than remain. It is always fatal to decoding
// the one message it names and is never retried at this layer.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string {
	return "wire: " + e.Msg
}

func formatErrorf(format string, args ...any) *FormatError {
	return &FormatError{Msg: fmt.Sprintf(format, args...)}
}
