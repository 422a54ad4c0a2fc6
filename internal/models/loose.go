package models

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/myrjola/noirline/internal/errors"
)

// looseString decodes a JSON string or number. Models number node ids as often as they quote them.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err //nolint:wrapcheck // keep json error types for callers
		}
		*s = looseString(str)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.New("expected string or number", slog.String("value", string(data)))
		}
		*s = looseString(n.String())
	}
	return nil
}

// looseInt decodes a JSON integer, an integral float or a string holding one.
type looseInt int

func (i *looseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err //nolint:wrapcheck // see above
		}
		text = strings.TrimSpace(text)
	}
	if n, err := strconv.Atoi(text); err == nil {
		*i = looseInt(n)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return errors.New("expected integer", slog.String("value", string(data)))
	}
	*i = looseInt(f)
	return nil
}

// ParseRole maps a role as the model spelled it to a Role. Case and surrounding space are ignored.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleDetective, RoleJournalist:
		return r, true
	default:
		return "", false
	}
}
