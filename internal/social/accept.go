package social

import (
	"errors"
	"strconv"
)

// ErrInvalidRequestRef is returned when an accept reference carries no
// resolvable request id. No state is mutated in that case.
var ErrInvalidRequestRef = errors.New("friend request reference has no id")

// acceptIDKeys is the ordered field-name list tried on map-shaped
// references. Explicit and total: no ad-hoc shape probing anywhere else.
var acceptIDKeys = []string{"id", "requestId", "request_id"}

// ResolveAcceptRef extracts the request id from a bare id or a
// request-shaped value. Accepted shapes: Request, *Request, any integer,
// a numeric string, or a generic map with one of the known id keys.
func ResolveAcceptRef(ref any) (int64, error) {
	switch v := ref.(type) {
	case Request:
		return nonZero(v.ID)
	case *Request:
		if v == nil {
			return 0, ErrInvalidRequestRef
		}
		return nonZero(v.ID)
	case int:
		return nonZero(int64(v))
	case int64:
		return nonZero(v)
	case float64: // decoded JSON numbers arrive as float64
		return nonZero(int64(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, ErrInvalidRequestRef
		}
		return nonZero(n)
	case map[string]any:
		for _, key := range acceptIDKeys {
			if raw, ok := v[key]; ok {
				if id, err := ResolveAcceptRef(raw); err == nil {
					return id, nil
				}
			}
		}
		return 0, ErrInvalidRequestRef
	default:
		return 0, ErrInvalidRequestRef
	}
}

func nonZero(id int64) (int64, error) {
	if id == 0 {
		return 0, ErrInvalidRequestRef
	}
	return id, nil
}
