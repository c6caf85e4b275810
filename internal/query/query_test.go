package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_FreeText(t *testing.T) {
	b := NewBuilder(DefaultSource())

	target, err := b.Build("Medical Billing", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, target.Page)
	assert.Equal(t, "https://www.bbb.org/search?find_country=USA&find_text=Medical+Billing&page=2", target.URL)
}

func TestBuilder_Query_TrimsAndClassifies(t *testing.T) {
	b := NewBuilder(DefaultSource())

	q := b.Query("  plumbers  ")
	assert.Equal(t, "plumbers", q.Raw())
	assert.False(t, q.Prebuilt())

	q = b.Query("https://www.bbb.org/search?find_text=plumbers")
	assert.True(t, q.Prebuilt())

	// Host without www still counts as the source.
	q = b.Query("https://bbb.org/search?find_text=plumbers")
	assert.True(t, q.Prebuilt())

	// Anything URL-shaped is an address; Target decides whether it is usable.
	q = b.Query("https://example.com/search?q=x")
	assert.True(t, q.Prebuilt())

	q = b.Query("bbb.org/search?find_text=plumbers")
	assert.True(t, q.Prebuilt())
}

func TestBuilder_RejectsAddressesOffSource(t *testing.T) {
	b := NewBuilder(DefaultSource())

	inputs := []string{
		"https://attacker.example/collect?ref=bbb.org/search",
		"https://example.com/search?find_text=plumber",
		"https://www.bbb.org.attacker.example/search?find_text=plumber",
		"bbb.org/search?find_text=plumber",
		"www.bbb.org/search?find_text=plumber",
		"ftp://www.bbb.org/search?find_text=plumber",
		"https://www.bbb.org/us/md/acme-0011-123?page=1",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			target, err := b.Build(input, 2)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedAddress)
			assert.Empty(t, target.URL)
		})
	}
}

func TestBuilder_Owns(t *testing.T) {
	b := NewBuilder(DefaultSource())

	assert.True(t, b.Owns("https://www.bbb.org/us/md/acme-0011-123"))
	assert.True(t, b.Owns("http://bbb.org/us/md/acme-0011-123"))
	assert.True(t, b.Owns("https://WWW.BBB.ORG/search"))
	assert.False(t, b.Owns("https://attacker.example/us/md/acme-0011-123"))
	assert.False(t, b.Owns("https://bbb.org.attacker.example/"))
	assert.False(t, b.Owns("/us/md/acme-0011-123"))
	assert.False(t, b.Owns("javascript:alert(1)"))
	assert.False(t, b.Owns("://bad"))
}

func TestBuilder_PrebuiltOverwritesPage(t *testing.T) {
	b := NewBuilder(DefaultSource())
	input := "https://www.bbb.org/search?filter_category=60548-100&filter_category=60142-000&filter_ratings=A&find_country=USA&find_text=Medical+Billing&page=1"

	target, err := b.Build(input, 7)
	require.NoError(t, err)
	assert.Equal(t,
		"https://www.bbb.org/search?filter_category=60548-100&filter_category=60142-000&filter_ratings=A&find_country=USA&find_text=Medical+Billing&page=7",
		target.URL)
}

func TestBuilder_PrebuiltAppendsMissingPage(t *testing.T) {
	b := NewBuilder(DefaultSource())

	target, err := b.Build("https://www.bbb.org/search?find_text=roofing", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://www.bbb.org/search?find_text=roofing&page=3", target.URL)

	target, err = b.Build("https://www.bbb.org/search", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://www.bbb.org/search?page=3", target.URL)
}

func TestBuilder_RebuildReplacesNeverDuplicates(t *testing.T) {
	b := NewBuilder(DefaultSource())

	first, err := b.Build("https://www.bbb.org/search?find_text=roofing&page=2&page=9", 1)
	require.NoError(t, err)

	second, err := b.Build(first.URL, 5)
	require.NoError(t, err)

	u, err := url.Parse(second.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, u.Query()["page"])
	assert.Equal(t, "roofing", u.Query().Get("find_text"))

	// The same holds for addresses produced from free text.
	fresh, err := b.Build("roofing", 1)
	require.NoError(t, err)
	again, err := b.Build(fresh.URL, 4)
	require.NoError(t, err)
	u, err = url.Parse(again.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, u.Query()["page"])
}

func TestBuilder_DistinctPagesDifferOnlyInPage(t *testing.T) {
	b := NewBuilder(DefaultSource())
	inputs := []string{
		"dentists",
		"https://www.bbb.org/search?find_country=USA&find_text=dentists&filter_ratings=A",
	}

	for _, input := range inputs {
		seen := make(map[string]bool)
		var base url.Values
		for p := 1; p <= 50; p++ {
			target, err := b.Build(input, p)
			require.NoError(t, err)
			assert.False(t, seen[target.URL], "duplicate url %s", target.URL)
			seen[target.URL] = true

			u, err := url.Parse(target.URL)
			require.NoError(t, err)
			q := u.Query()
			q.Del("page")
			if base == nil {
				base = q
			}
			assert.Equal(t, base, q)
		}
		assert.Len(t, seen, 50)
	}
}

func TestBuilder_MalformedAddress(t *testing.T) {
	b := NewBuilder(DefaultSource())

	_, err := b.Build("https://www.bbb.org/search?find_text=%zz", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedAddress)

	_, err = b.Build("https://www.bbb.org/search\x7f?find_text=x", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedAddress)
}

func TestBuilder_InvalidPage(t *testing.T) {
	b := NewBuilder(DefaultSource())

	_, err := b.Build("dentists", 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestBuilder_CustomSource(t *testing.T) {
	b := NewBuilder(Source{Origin: "http://127.0.0.1:8080/", SearchPath: "/search", Country: "CAN"})

	target, err := b.Build("bakery", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/search?find_country=CAN&find_text=bakery&page=1", target.URL)

	q := b.Query("http://127.0.0.1:8080/search?find_text=bakery")
	assert.True(t, q.Prebuilt())
}
