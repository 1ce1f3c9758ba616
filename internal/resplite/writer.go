package resplite

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Encode returns the RESP-lite text form of v
func Encode(v Value) (string, error) {
	b, err := Append(nil, v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Append appends the RESP-lite text form of v to dst.
// On error dst is returned unchanged
func Append(dst []byte, v Value) ([]byte, error) {
	out, err := appendValue(dst, v)
	if err != nil {
		return dst, err
	}
	return out, nil
}

func appendValue(dst []byte, v Value) ([]byte, error) {
	switch v.Type {
	case TypeSimpleString:
		if strings.ContainsAny(v.String, crlf) {
			return nil, encodeError("Simple string cannot contain CR or LF")
		}
		dst = append(dst, TypeSimpleString)
		dst = append(dst, v.String...)
		return append(dst, crlf...), nil

	case TypeInteger:
		if v.Integer < 0 {
			return nil, encodeError("Integer cannot be negative")
		}
		return appendHeader(dst, TypeInteger, v.Integer), nil

	case TypeArray:
		dst = appendHeader(dst, TypeArray, int64(len(v.Array)))
		var err error
		for _, el := range v.Array {
			if dst, err = appendValue(dst, el); err != nil {
				return nil, err
			}
		}
		return dst, nil
	}

	return nil, encodeError("Invalid RESPLite type")
}

// appendHeader writes the type prefix, the decimal number and CRLF
func appendHeader(dst []byte, prefix byte, n int64) []byte {
	dst = append(dst, prefix)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, crlf...)
}

// Encoder handles the serialization of Value objects into an output stream
type Encoder struct {
	writer  *bufio.Writer
	scratch []byte
}

// NewEncoder initializes an Encoder with a buffered writer
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		writer: bufio.NewWriter(w),
	}
}

// Write serializes v into the buffer. Nothing reaches the underlying stream until Flush
func (e *Encoder) Write(v Value) error {
	b, err := Append(e.scratch[:0], v)
	if err != nil {
		return err
	}
	e.scratch = b

	_, err = e.writer.Write(b)
	return err
}

// WriteRaw writes an already encoded payload
func (e *Encoder) WriteRaw(payload string) error {
	_, err := e.writer.WriteString(payload)
	return err
}

// Flush sends all buffered data to the underlying stream
func (e *Encoder) Flush() error {
	return e.writer.Flush()
}

// Reset discards unflushed data and redirects output to w
func (e *Encoder) Reset(w io.Writer) {
	e.writer.Reset(w)
}
