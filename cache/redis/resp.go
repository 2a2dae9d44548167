package redis

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Error is an error reply sent by the server, e.g. "WRONGTYPE ...".
type Error string

func (e Error) Error() string { return "redis: " + string(e) }

var errMalformed = errors.New("redis: malformed reply")

func encodeCommand(args ...string) []byte {
	b := make([]byte, 0, 16+16*len(args))
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(len(args)), 10)
	b = append(b, '\r', '\n')
	for _, a := range args {
		b = append(b, '$')
		b = strconv.AppendInt(b, int64(len(a)), 10)
		b = append(b, '\r', '\n')
		b = append(b, a...)
		b = append(b, '\r', '\n')
	}
	return b
}

// decodeRESP reads one reply. Simple strings decode to string, integers to
// int64, bulk strings to []byte, arrays to []any and null replies to nil.
// Error replies are returned as Error.
func decodeRESP(r *bufio.Reader) (any, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line, ok := strings.CutSuffix(line, "\r\n")
	if !ok {
		return nil, errMalformed
	}

	switch kind {
	case '+':
		return line, nil
	case '-':
		return nil, Error(line)
	case ':':
		return strconv.ParseInt(line, 10, 64)
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		return nil, fmt.Errorf("%w: length %q", errMalformed, line)
	}
	switch kind {
	case '$':
		if n < 0 {
			return nil, nil
		}
		data := make([]byte, n+2)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		if data[n] != '\r' || data[n+1] != '\n' {
			return nil, errMalformed
		}
		return data[:n], nil
	case '*':
		if n < 0 {
			return nil, nil
		}
		items := make([]any, n)
		for i := range items {
			if items[i], err = decodeRESP(r); err != nil {
				return nil, err
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("redis: unsupported reply type %q", kind)
	}
}

func expectStatus(reply any, want string) error {
	if s, ok := reply.(string); ok && strings.EqualFold(s, want) {
		return nil
	}
	return fmt.Errorf("redis: expected %s, got %v", want, reply)
}
