package command_test

import (
	"testing"

	"github.com/eternalApril/updown/internal/command"
	"github.com/eternalApril/updown/internal/resplite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	str = resplite.MakeSimpleString
	num = resplite.MakeInteger
	arr = resplite.MakeArray
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input resplite.Value
		want  command.Command
	}{
		{"down", arr(str("down"), num(5)), command.Down{Offset: 5}},
		{"up", arr(str("up"), num(5)), command.Up{Offset: 5}},
		{"info", arr(str("info"), num(3)), command.Info{ConnectedUsers: 3}},
		{"uppercase", arr(str("DOWN"), num(1)), command.Down{Offset: 1}},
		{"mixed case", arr(str("uP"), num(0)), command.Up{Offset: 0}},
		{"extra elements ignored", arr(str("down"), num(2), str("x"), arr()), command.Down{Offset: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := command.Decode(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_CaseInsensitive(t *testing.T) {
	upper, err := command.Decode(arr(str("DOWN"), num(1)))
	require.NoError(t, err)
	lower, err := command.Decode(arr(str("down"), num(1)))
	require.NoError(t, err)

	assert.Equal(t, upper, lower)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   resplite.Value
		wantMsg string
	}{
		{"not an array", str("down"), "Expected array"},
		{"integer root", num(1), "Expected array"},
		{"empty array", arr(), "Empty array"},
		{"name is integer", arr(num(1), num(1)), "Expected simple string"},
		{"name is array", arr(arr(str("down")), num(1)), "Expected simple string"},
		{"unknown command", arr(str("unknown")), "Unknown command"},
		{"missing offset", arr(str("down")), "Unexpected end of array"},
		{"missing users", arr(str("info")), "Unexpected end of array"},
		{"offset is string", arr(str("up"), str("5")), "Expected integer"},
		{"users is array", arr(str("info"), arr(num(1))), "Expected integer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := command.Decode(tt.input)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, resplite.ErrCommand)
			assert.NotErrorIs(t, err, resplite.ErrParse)
			assert.EqualError(t, err, tt.wantMsg)
		})
	}
}

func TestCommand_Value(t *testing.T) {
	tests := []struct {
		cmd  command.Command
		want string
	}{
		{command.Down{Offset: 5}, "*2\r\n+DOWN\r\n:5\r\n"},
		{command.Up{Offset: 12}, "*2\r\n+UP\r\n:12\r\n"},
		{command.Info{ConnectedUsers: 2}, "*2\r\n+INFO\r\n:2\r\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.cmd.Name()), func(t *testing.T) {
			got, err := command.Encode(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := command.Decode(tt.cmd.Value())
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, back)
		})
	}
}

func TestParse(t *testing.T) {
	cmd, v, err := command.Parse("*2\r\n+down\r\n:7\r\n")
	require.NoError(t, err)
	assert.Equal(t, command.Down{Offset: 7}, cmd)

	// the parsed value keeps the sender's spelling
	raw, err := resplite.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, "*2\r\n+down\r\n:7\r\n", raw)
}

func TestParse_Errors(t *testing.T) {
	_, _, err := command.Parse(":abc\r\n")
	assert.Equal(t, resplite.KindParse, resplite.KindOf(err))

	_, v, err := command.Parse("*1\r\n+unknown\r\n")
	assert.Equal(t, resplite.KindCommand, resplite.KindOf(err))
	assert.Equal(t, byte(resplite.TypeArray), v.Type)
}
