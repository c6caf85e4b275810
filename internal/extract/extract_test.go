package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchPage = `<html><head>
<script>
window.__PRELOADED_STATE__ = {"searchResult":{"totalResults":2,"results":[
  {"businessId":"123","businessName":"<em>Acme</em> Plumbing"},
  {"businessId":"456","businessName":"Best Roofing"}
]}};</script>
<script>window.other = {"a":1};</script>
</head><body></body></html>`

func TestParse_Found(t *testing.T) {
	p, status := Parse(searchPage)
	require.Equal(t, Found, status)
	assert.True(t, p.Exists())
	assert.Equal(t, int64(2), p.Get("searchResult.totalResults").Int())
	assert.Equal(t, "123", p.Get("searchResult.results.0.businessId").String())
	assert.Len(t, p.Get("searchResult.results").Array(), 2)
}

func TestParse_NonGreedyStopsAtFirstScriptEnd(t *testing.T) {
	p, status := Parse(searchPage)
	require.Equal(t, Found, status)
	assert.False(t, p.Get("a").Exists())
}

func TestParse_Missing(t *testing.T) {
	p, status := Parse("<html><body>no state here</body></html>")
	assert.Equal(t, Missing, status)
	assert.False(t, p.Exists())
}

func TestParse_Malformed(t *testing.T) {
	doc := `<script>window.__PRELOADED_STATE__ = {"searchResult": {oops};</script>`
	p, status := Parse(doc)
	assert.Equal(t, Malformed, status)
	assert.False(t, p.Exists())
}

func TestNewPayload_RejectsNonObject(t *testing.T) {
	_, ok := NewPayload(`[1,2,3]`)
	assert.False(t, ok)
	_, ok = NewPayload(`not json`)
	assert.False(t, ok)
	p, ok := NewPayload(`{"x":1}`)
	require.True(t, ok)
	assert.Equal(t, `{"x":1}`, p.Raw())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "missing", Missing.String())
	assert.Equal(t, "malformed", Malformed.String())
}
