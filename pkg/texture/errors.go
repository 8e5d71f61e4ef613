package texture

import "fmt"

// ValidationError is returned for requests that fail input validation before
// any I/O is attempted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewEmptyIdentifierError reports a missing resource identifier.
func NewEmptyIdentifierError() *ValidationError {
	return &ValidationError{Message: "empty url"}
}

// TransportError is a network or HTTP-status failure during a fetch. The two
// are not distinguished further; the transport message is passed through
// verbatim.
type TransportError struct {
	URL     string
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.URL, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError wraps a transport failure for the given URL.
func NewTransportError(url, message string, cause error) *TransportError {
	return &TransportError{URL: url, Message: message, Cause: cause}
}

// DecodeError reports malformed bytes for the classified format.
type DecodeError struct {
	Identifier string
	Tag        MimeTag
	Cause      error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unable to decode %s as %s: %v", e.Identifier, e.Tag, e.Cause)
	}
	return fmt.Sprintf("unable to decode %s as %s", e.Identifier, e.Tag)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// NewDecodeError wraps a decoder failure for the given identifier.
func NewDecodeError(identifier string, tag MimeTag, cause error) *DecodeError {
	return &DecodeError{Identifier: identifier, Tag: tag, Cause: cause}
}

// TranscodeError reports a transcoding failure for a compressed container.
type TranscodeError struct {
	Identifier string
	Cause      error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("unable to transcode %s", e.Identifier)
}

func (e *TranscodeError) Unwrap() error {
	return e.Cause
}

// NewTranscodeError wraps a transcoder failure for the given identifier.
func NewTranscodeError(identifier string, cause error) *TranscodeError {
	return &TranscodeError{Identifier: identifier, Cause: cause}
}

// UnsupportedFormatError reports an identifier whose extension has no decode
// route, or a compressed format requested without the transcoding capability.
type UnsupportedFormatError struct {
	Identifier string
	Message    string
}

func (e *UnsupportedFormatError) Error() string {
	return e.Message
}

// NewUnsupportedMimeError reports an unknown extension.
func NewUnsupportedMimeError(identifier string) *UnsupportedFormatError {
	return &UnsupportedFormatError{
		Identifier: identifier,
		Message:    fmt.Sprintf("unsupported mime type: %s", identifier),
	}
}

// NewTranscodingDisabledError reports a compressed-format request made
// without a registered transcoder.
func NewTranscodingDisabledError(identifier string) *UnsupportedFormatError {
	return &UnsupportedFormatError{
		Identifier: identifier,
		Message:    fmt.Sprintf("transcoding support not enabled: %s", identifier),
	}
}
