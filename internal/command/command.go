package command

import "github.com/eternalApril/updown/internal/resplite"

// Name is the canonical uppercase command name
type Name string

const (
	// NameDown and NameUp are sent by clients and relayed to everyone else
	NameDown Name = "DOWN"
	NameUp   Name = "UP"
	// NameInfo is sent by the server only
	NameInfo Name = "INFO"
)

// Command is one of Down, Up or Info
type Command interface {
	// Name returns the canonical command name
	Name() Name
	// Value encodes the command as a RESP-lite array
	Value() resplite.Value

	isCommand()
}

type Down struct {
	Offset int64
}

type Up struct {
	Offset int64
}

// Info reports how many clients are connected
type Info struct {
	ConnectedUsers int64
}

func (Down) Name() Name { return NameDown }
func (Up) Name() Name   { return NameUp }
func (Info) Name() Name { return NameInfo }

func (c Down) Value() resplite.Value { return makeCommand(NameDown, c.Offset) }
func (c Up) Value() resplite.Value   { return makeCommand(NameUp, c.Offset) }
func (c Info) Value() resplite.Value { return makeCommand(NameInfo, c.ConnectedUsers) }

func (Down) isCommand() {}
func (Up) isCommand()   {}
func (Info) isCommand() {}

func makeCommand(name Name, n int64) resplite.Value {
	return resplite.MakeArray(
		resplite.MakeSimpleString(string(name)),
		resplite.MakeInteger(n),
	)
}

// Encode returns the RESP-lite text form of c
func Encode(c Command) (string, error) {
	return resplite.Encode(c.Value())
}
