package cache

import (
	"fmt"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// namespacedKeySerializer prefixes every key with a namespace and joins scalar
// arguments. Separators inside arguments are escaped so "a::b" and ("a", "b")
// never collide.
type namespacedKeySerializer struct {
	namespace string
}

// NewKeySerializer returns a KeySerializer producing keys of the form
// namespace::method::arg1::arg2.
func NewKeySerializer(namespace string) KeySerializer {
	return &namespacedKeySerializer{namespace: namespace}
}

// NewDefaultKeySerializer returns a serializer without a namespace.
func NewDefaultKeySerializer() KeySerializer {
	return &namespacedKeySerializer{}
}

func (s *namespacedKeySerializer) SerializeKey(method string, args ...any) string {
	parts := make([]string, 0, len(args)+2)
	if s.namespace != "" {
		parts = append(parts, escape(s.namespace))
	}
	parts = append(parts, escape(method))

	for _, arg := range args {
		parts = append(parts, escape(serializeValue(arg)))
	}
	return strings.Join(parts, KeySeparator)
}

func serializeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

func escape(s string) string {
	return keyEscaper.Replace(s)
}
