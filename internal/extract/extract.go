// Package extract recovers the embedded state payload from fetched pages.
package extract

import (
	"regexp"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// stateMarker captures the JSON object assigned to the page's preloaded
// state. The match is non-greedy and spans lines.
var stateMarker = regexp.MustCompile(`(?s)window\.__PRELOADED_STATE__\s*=\s*(\{.*?\});\s*</script>`)

// Status reports what Parse found in a document.
type Status int

// Parse statuses.
const (
	Found Status = iota
	Missing
	Malformed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Missing:
		return "missing"
	default:
		return "malformed"
	}
}

// Payload is a parsed structured block. The zero Payload is empty.
type Payload struct {
	root gjson.Result
}

// NewPayload parses raw JSON. It returns false if raw is not valid JSON
// or is not an object.
func NewPayload(raw string) (Payload, bool) {
	if !gjson.Valid(raw) {
		return Payload{}, false
	}
	root := gjson.Parse(raw)
	if !root.IsObject() {
		return Payload{}, false
	}
	return Payload{root: root}, true
}

// Exists reports whether the payload holds parsed data.
func (p Payload) Exists() bool { return p.root.Exists() }

// Get returns the value at a gjson path, e.g. "searchResult.results".
func (p Payload) Get(path string) gjson.Result {
	return p.root.Get(path)
}

// Raw returns the payload's JSON text.
func (p Payload) Raw() string { return p.root.Raw }

// Parse locates the embedded state block in doc. A missing marker is not an
// error. A block that fails to parse is logged and reported as Malformed.
func Parse(doc string) (Payload, Status) {
	m := stateMarker.FindStringSubmatch(doc)
	if m == nil {
		return Payload{}, Missing
	}
	p, ok := NewPayload(m[1])
	if !ok {
		zap.L().Warn("extract: embedded state failed to parse",
			zap.Int("span_bytes", len(m[1])),
		)
		return Payload{}, Malformed
	}
	return p, Found
}
