package packet

import "strings"

// errorMessagePlaceholder is the only interpolation point a default literal
// supports. This fixes substitution to a single placeholder rather than a
// general template language.
const errorMessagePlaceholder = "${error.message}"

// ApplyDefault evaluates an edge's default literal against the message of
// the error packet that triggered it, substituting errorMessagePlaceholder
// wherever it appears in string leaves of the literal tree. Non-string
// leaves and composite values (maps, slices) pass through unchanged except
// for their string leaves, which are walked recursively.
func ApplyDefault(literal any, errMessage string) any {
	switch v := literal.(type) {
	case string:
		if strings.Contains(v, errorMessagePlaceholder) {
			return strings.ReplaceAll(v, errorMessagePlaceholder, errMessage)
		}
		return v
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = ApplyDefault(val, errMessage)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = ApplyDefault(val, errMessage)
		}
		return out
	default:
		return v
	}
}

// DefaultPacket builds the Ok-scalar packet enqueued downstream when an edge
// with a default literal observes an upstream error.
func DefaultPacket(port string, literal any, errMessage string) Packet {
	return OkScalar(port, ApplyDefault(literal, errMessage))
}
