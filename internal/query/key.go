package query

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cached read: the resource name followed by its
// parameters, in order. Keys with equal serializations share one entry.
type Key []any

func NewKey(resource string, params ...any) Key {
	return append(Key{resource}, params...)
}

func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	if s, ok := k[0].(string); ok {
		return s
	}
	return fmt.Sprint(k[0])
}

func (k Key) String() string {
	parts := make([]string, 0, len(k))
	for _, p := range k {
		b, err := json.Marshal(p)
		if err != nil {
			b = []byte(fmt.Sprintf("%q", fmt.Sprint(p)))
		}
		parts = append(parts, string(b))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// HasPrefix reports whether k starts with every element of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	return Key(k[:len(prefix)]).String() == prefix.String()
}
