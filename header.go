package bleproxy

import "strings"

// headerField is a single name/value pair in arrival order.
type headerField struct {
	name  string
	value string
}

// Headers preserves insertion order across distinct names (unlike
// net/http.Header, which is a map and loses cross-name ordering) while
// still comparing names case-insensitively, per spec.md §3.
type Headers struct {
	fields []headerField
}

func NewHeaders() *Headers {
	return &Headers{}
}

// Add appends a header, preserving any existing value under the same
// (case-insensitive) name rather than overwriting it.
func (h *Headers) Add(name, value string) {
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// Get returns the first value stored under name, and whether any value
// was found at all.
func (h *Headers) Get(name string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			return f.value, true
		}
	}
	return "", false
}

// Values returns every value stored under name, in insertion order.
func (h *Headers) Values(name string) []string {
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.name, name) {
			out = append(out, f.value)
		}
	}
	return out
}

// Del removes every field matching name.
func (h *Headers) Del(name string) {
	out := h.fields[:0]
	for _, f := range h.fields {
		if !strings.EqualFold(f.name, name) {
			out = append(out, f)
		}
	}
	h.fields = out
}

// Len reports the number of fields, counting duplicates.
func (h *Headers) Len() int { return len(h.fields) }

// Range calls fn for every field in insertion order.
func (h *Headers) Range(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// Equal reports whether two header sets carry the same fields in the
// same order — used by the parse(serialize(x))==x round-trip property.
func (h *Headers) Equal(other *Headers) bool {
	if h.Len() != other.Len() {
		return false
	}
	for i, f := range h.fields {
		o := other.fields[i]
		if !strings.EqualFold(f.name, o.name) || f.value != o.value {
			return false
		}
	}
	return true
}

// hopByHopHeaders lists the headers spec.md §4.4 requires the origin
// client to strip before forwarding, regardless of what the central
// sent or the origin returned.
var hopByHopHeaders = map[string]bool{
	"connection":        true,
	"keep-alive":        true,
	"proxy-authenticate": true,
	"proxy-authorization": true,
	"transfer-encoding": true,
	"upgrade":           true,
	"te":                true,
}

func isHopByHop(name string) bool {
	if hopByHopHeaders[strings.ToLower(name)] {
		return true
	}
	return strings.HasPrefix(strings.ToLower(name), "proxy-")
}
