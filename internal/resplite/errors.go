package resplite

import "errors"

// ErrorKind classifies every failure the codec and the command layer can report
type ErrorKind uint8

const (
	// KindParse is malformed RESP-lite text
	KindParse ErrorKind = iota + 1
	// KindEncode is a value that has no RESP-lite text form
	KindEncode
	// KindCommand is a well-formed value that is not a valid command
	KindCommand
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "parse error"
	case KindEncode:
		return "encode error"
	case KindCommand:
		return "command error"
	}
	return "unknown error"
}

var (
	ErrParse   = &Error{Kind: KindParse}
	ErrEncode  = &Error{Kind: KindEncode}
	ErrCommand = &Error{Kind: KindCommand}
)

// Error carries the kind of failure and a short human-readable message.
// errors.Is(err, ErrParse) matches any parse error regardless of its message
type Error struct {
	Kind ErrorKind
	Msg  string
}

// NewError constructs an Error of the given kind
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Msg
}

// Is matches on kind when target carries no message, and on kind and message otherwise
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Msg == "" || t.Msg == e.Msg
}

// KindOf returns the kind of err, or 0 if err did not come from this package
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func parseError(msg string) error {
	return NewError(KindParse, msg)
}

func encodeError(msg string) error {
	return NewError(KindEncode, msg)
}
