package command

import (
	"strings"

	"github.com/eternalApril/updown/internal/resplite"
)

// Decode interprets v as a command.
// Elements after the ones a command needs are ignored
func Decode(v resplite.Value) (Command, error) {
	if v.Type != resplite.TypeArray {
		return nil, commandError("Expected array")
	}
	if len(v.Array) == 0 {
		return nil, commandError("Empty array")
	}

	d := &decoder{array: v.Array}

	name, err := d.takeSimpleString()
	if err != nil {
		return nil, err
	}

	switch Name(strings.ToUpper(name)) {
	case NameDown:
		offset, err := d.takeInteger()
		if err != nil {
			return nil, err
		}
		return Down{Offset: offset}, nil

	case NameUp:
		offset, err := d.takeInteger()
		if err != nil {
			return nil, err
		}
		return Up{Offset: offset}, nil

	case NameInfo:
		users, err := d.takeInteger()
		if err != nil {
			return nil, err
		}
		return Info{ConnectedUsers: users}, nil
	}

	return nil, commandError("Unknown command")
}

// Parse is resplite.Parse followed by Decode. The parsed value is returned as
// well so callers can relay it unchanged
func Parse(buf string) (Command, resplite.Value, error) {
	v, err := resplite.Parse(buf)
	if err != nil {
		return nil, resplite.Value{}, err
	}

	cmd, err := Decode(v)
	if err != nil {
		return nil, v, err
	}

	return cmd, v, nil
}

// decoder walks the elements of a command array in order
type decoder struct {
	array []resplite.Value
	pos   int
}

func (d *decoder) current() (resplite.Value, error) {
	if d.pos >= len(d.array) {
		return resplite.Value{}, commandError("Unexpected end of array")
	}
	return d.array[d.pos], nil
}

func (d *decoder) takeSimpleString() (string, error) {
	v, err := d.current()
	if err != nil {
		return "", err
	}
	if v.Type != resplite.TypeSimpleString {
		return "", commandError("Expected simple string")
	}

	d.pos++
	return v.String, nil
}

func (d *decoder) takeInteger() (int64, error) {
	v, err := d.current()
	if err != nil {
		return 0, err
	}
	if v.Type != resplite.TypeInteger {
		return 0, commandError("Expected integer")
	}

	d.pos++
	return v.Integer, nil
}

func commandError(msg string) error {
	return resplite.NewError(resplite.KindCommand, msg)
}
