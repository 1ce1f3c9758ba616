package resplite

import (
	"strconv"
	"strings"
)

const crlf = "\r\n"

// Parse decodes the first RESP-lite value in buf.
// Bytes following a complete value are ignored; use ParsePrefix to detect them
func Parse(buf string) (Value, error) {
	v, _, err := ParsePrefix(buf)
	return v, err
}

// ParsePrefix decodes the first RESP-lite value in buf and reports how many bytes it occupied
func ParsePrefix(buf string) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 0, parseError("Empty buffer")
	}
	return parseValue(buf)
}

// parseValue dispatches on the type byte. Every helper receives the buffer starting
// at its own value and returns the number of bytes consumed, so nested calls advance
// by slicing rather than through a shared position
func parseValue(buf string) (Value, int, error) {
	if len(buf) == 0 {
		return Value{}, 0, parseError("Unexpected end of input")
	}

	switch buf[0] {
	case TypeSimpleString:
		return parseSimpleString(buf)
	case TypeInteger:
		return parseInteger(buf)
	case TypeArray:
		return parseArray(buf)
	}

	return Value{}, 0, parseError("Invalid RESPLite type")
}

func parseSimpleString(buf string) (Value, int, error) {
	content, n, err := readUntilCRLF(buf[1:])
	if err != nil {
		return Value{}, 0, err
	}

	// a lone CR or LF before the terminator
	if strings.ContainsAny(content, crlf) {
		return Value{}, 0, parseError("Simple string cannot contain CR or LF")
	}

	return MakeSimpleString(content), 1 + n, nil
}

func parseInteger(buf string) (Value, int, error) {
	content, n, err := readUntilCRLF(buf[1:])
	if err != nil {
		return Value{}, 0, err
	}

	num, err := parseDigits(content, "Invalid integer format")
	if err != nil {
		return Value{}, 0, err
	}

	return MakeInteger(num), 1 + n, nil
}

func parseArray(buf string) (Value, int, error) {
	content, n, err := readUntilCRLF(buf[1:])
	if err != nil {
		return Value{}, 0, err
	}

	length, err := parseDigits(content, "Invalid array length format")
	if err != nil {
		return Value{}, 0, err
	}

	consumed := 1 + n
	rest := buf[consumed:]

	// an element is at least three bytes ("+\r\n")
	capacity := length
	if limit := int64(len(rest) / 3); capacity > limit {
		capacity = limit
	}
	values := make([]Value, 0, capacity)

	for i := int64(0); i < length; i++ {
		v, m, err := parseValue(rest)
		if err != nil {
			return Value{}, 0, err
		}
		values = append(values, v)
		rest = rest[m:]
		consumed += m
	}

	return MakeArray(values...), consumed, nil
}

// readUntilCRLF returns everything before the first CRLF in buf and the number
// of bytes up to and including that CRLF
func readUntilCRLF(buf string) (string, int, error) {
	i := strings.Index(buf, crlf)
	if i < 0 {
		return "", 0, parseError("CRLF not found")
	}
	return buf[:i], i + len(crlf), nil
}

// parseDigits accepts one or more ASCII digits and nothing else
func parseDigits(s string, msg string) (int64, error) {
	if len(s) == 0 {
		return 0, parseError(msg)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, parseError(msg)
		}
	}

	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// only overflow can get here
		return 0, parseError(msg)
	}

	return num, nil
}
