package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const renderedSearch = `<html><body>
<div class="card result-card">
  <h3 class="result-business-name"><a href="/us/md/baltimore/profile/plumber/acme-plumbing-0011-123">Acme
     Plumbing</a></h3>
  <a href="tel:4105550101">(410) 555-0101</a>
  <div class="result-business-info"><p translate="no">12 Main St, Baltimore, MD 21201</p></div>
  <img alt="Accredited Business" src="seal.png">
</div>
<div class="card result-card">
  <h3 class="result-business-name"><a href="/us/md/towson/profile/roofing/best-roofing-0011-456">Best Roofing</a></h3>
</div>
</body></html>`

const renderedDetail = `<html><body><dl>
<dt>Business Started:</dt><dd>1/1/2000</dd>
<dt>Principal Contacts</dt><dd>Jane Q Doe, Owner</dd>
</dl></body></html>`

func TestSearchFromDOM(t *testing.T) {
	p, ok, err := SearchFromDOM(renderedSearch)
	require.NoError(t, err)
	require.True(t, ok)

	results := p.Get("searchResult.results").Array()
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "Acme Plumbing", first.Get("businessName").String())
	assert.Equal(t, "/us/md/baltimore/profile/plumber/acme-plumbing-0011-123", first.Get("reportUrl").String())
	assert.Equal(t, "(410) 555-0101", first.Get("phone.0").String())
	assert.Equal(t, "12 Main St", first.Get("address").String())
	assert.True(t, first.Get("accreditedCharity").Bool())

	second := results[1]
	assert.False(t, second.Get("phone").Exists())
	assert.False(t, second.Get("address").Exists())
	assert.False(t, second.Get("accreditedCharity").Bool())
}

func TestSearchFromDOM_NoCards(t *testing.T) {
	_, ok, err := SearchFromDOM("<html><body><p>nothing</p></body></html>")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetailFromDOM(t *testing.T) {
	p, ok, err := DetailFromDOM(renderedDetail)
	require.NoError(t, err)
	require.True(t, ok)

	contact := p.Get("businessProfile.contactInformation.contacts.0")
	assert.True(t, contact.Get("isPrincipal").Bool())
	assert.Equal(t, "Jane Q Doe", contact.Get("name.first").String())
}

func TestDetailFromDOM_Absent(t *testing.T) {
	_, ok, err := DetailFromDOM("<dl><dt>Business Started:</dt><dd>2000</dd></dl>")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractor_PrefersEmbeddedState(t *testing.T) {
	e := &Extractor{DOMFallback: true}
	doc := `<script>window.__PRELOADED_STATE__ = {"searchResult":{"results":[{"businessId":"9"}]}};</script>` + renderedSearch

	p, ok := e.SearchPayload(doc)
	require.True(t, ok)
	assert.Equal(t, "9", p.Get("searchResult.results.0.businessId").String())
}

func TestExtractor_Fallback(t *testing.T) {
	p, ok := (&Extractor{DOMFallback: true}).SearchPayload(renderedSearch)
	require.True(t, ok)
	assert.Len(t, p.Get("searchResult.results").Array(), 2)

	_, ok = (&Extractor{DOMFallback: false}).SearchPayload(renderedSearch)
	assert.False(t, ok)
}

func TestExtractor_WrongSection(t *testing.T) {
	// A search page's state carries no business profile.
	e := &Extractor{}
	_, ok := e.DetailPayload(searchPage)
	assert.False(t, ok)

	_, ok = e.SearchPayload(searchPage)
	assert.True(t, ok)
}

func TestExtractor_DetailFallback(t *testing.T) {
	p, ok := (&Extractor{DOMFallback: true}).DetailPayload(renderedDetail)
	require.True(t, ok)
	assert.Equal(t, "Jane Q Doe", p.Get("businessProfile.contactInformation.contacts.0.name.first").String())
}
