package resplite

const (
	TypeSimpleString = '+'
	TypeInteger      = ':'
	TypeArray        = '*'
)

// Value is a single RESP-lite value. Type selects which of the payload fields is meaningful
type Value struct {
	String  string // SimpleString
	Array   []Value
	Integer int64 // Integer, never negative when produced by Parse
	Type    byte
}

// Equal reports whether v and other are structurally identical
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}

	switch v.Type {
	case TypeSimpleString:
		return v.String == other.String
	case TypeInteger:
		return v.Integer == other.Integer
	case TypeArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	}

	return false
}
