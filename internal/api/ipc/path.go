package ipc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Op is a boundary protocol operation.
type Op int

const (
	OpPush Op = iota
	OpPop
	OpCloseUpstream
	OpCloseDownstream
)

func (o Op) String() string {
	switch o {
	case OpPush:
		return "push"
	case OpPop:
		return "pop"
	case OpCloseUpstream:
		return "close_upstream"
	case OpCloseDownstream:
		return "close_downstream"
	default:
		return "unknown"
	}
}

var (
	// ErrMalformedPath is returned for paths that name no operation.
	ErrMalformedPath = errors.New("malformed request path")
	// ErrInvalidSessionID is returned when the id segment is not a
	// non-negative decimal integer.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// ParsePath parses "/{id}/push", "/{id}/pop", "/{id}/close/upstream" and
// "/{id}/close/downstream".
func ParsePath(path string) (Op, int, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}

	id, err := strconv.ParseUint(parts[0], 10, 31)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSessionID, parts[0])
	}

	var op Op
	switch strings.Join(parts[1:], "/") {
	case "push":
		op = OpPush
	case "pop":
		op = OpPop
	case "close/upstream":
		op = OpCloseUpstream
	case "close/downstream":
		op = OpCloseDownstream
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}
	return op, int(id), nil
}
