// Package query turns search input into concrete, paginated search addresses.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMalformedAddress is returned when a pre-built search address cannot be
// parsed or is not a search address of the source. It is fatal to the page
// being built only.
var ErrMalformedAddress = eris.New("query: malformed search address")

// ErrInvalidPage is returned for page indices below 1.
var ErrInvalidPage = eris.New("query: page index must be positive")

const pageParam = "page"

// Source describes the search endpoint of the directory being harvested.
type Source struct {
	Origin     string // scheme and host, e.g. "https://www.bbb.org"
	SearchPath string // e.g. "/search"
	Country    string // value of the find_country filter for free-text queries
}

// DefaultSource returns the production directory settings.
func DefaultSource() Source {
	return Source{
		Origin:     "https://www.bbb.org",
		SearchPath: "/search",
		Country:    "USA",
	}
}

// SearchQuery is either a free-text term or a pre-parametrized search address.
// It is immutable once built.
type SearchQuery struct {
	raw      string
	prebuilt bool
}

// Raw returns the trimmed input the query was built from.
func (q SearchQuery) Raw() string { return q.raw }

// Prebuilt reports whether the input was given as a search address rather
// than a search term.
func (q SearchQuery) Prebuilt() bool { return q.prebuilt }

// PageTarget is a fully resolved address for one page of results.
type PageTarget struct {
	Page int
	URL  string
}

// Builder produces page targets for a Source.
type Builder struct {
	src    Source
	host   string
	marker string
}

// NewBuilder creates a Builder for src.
func NewBuilder(src Source) *Builder {
	host := src.Origin
	if u, err := url.Parse(src.Origin); err == nil && u.Host != "" {
		host = u.Host
	}
	host = bareHost(host)
	return &Builder{src: src, host: host, marker: host + src.SearchPath}
}

// Query classifies input as a search address or a free-text term. Any input
// with a scheme, or naming the source's search path, is an address; whether
// it actually belongs to the source is checked by Target.
func (b *Builder) Query(input string) SearchQuery {
	input = strings.TrimSpace(input)
	lower := strings.ToLower(input)
	return SearchQuery{
		raw:      input,
		prebuilt: strings.Contains(lower, "://") || strings.Contains(lower, b.marker),
	}
}

// Owns reports whether rawURL is an http(s) address on the source's host.
// A leading "www." is ignored on both sides.
func (b *Builder) Owns(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return b.owns(u)
}

func (b *Builder) owns(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return bareHost(u.Host) == b.host
}

// Target resolves q for the given page. For pre-built addresses the page
// parameter is overwritten in place and every other parameter is preserved
// verbatim; free-text queries get a fresh address on the source's search path.
// An address that does not parse, or is not the source's search path, fails
// with ErrMalformedAddress.
func (b *Builder) Target(q SearchQuery, page int) (PageTarget, error) {
	if page < 1 {
		return PageTarget{}, eris.Wrapf(ErrInvalidPage, "page %d", page)
	}
	if !q.prebuilt {
		params := url.Values{}
		params.Set("find_country", b.src.Country)
		params.Set("find_text", q.raw)
		params.Set(pageParam, strconv.Itoa(page))
		return PageTarget{
			Page: page,
			URL:  strings.TrimRight(b.src.Origin, "/") + b.src.SearchPath + "?" + params.Encode(),
		}, nil
	}

	u, err := url.Parse(q.raw)
	if err != nil {
		return PageTarget{}, eris.Wrapf(ErrMalformedAddress, "%s: %v", q.raw, err)
	}
	if !b.owns(u) || strings.TrimSuffix(u.Path, "/") != b.src.SearchPath {
		return PageTarget{}, eris.Wrapf(ErrMalformedAddress, "%s: not a search address on %s", q.raw, b.host)
	}
	if _, err := url.ParseQuery(u.RawQuery); err != nil {
		return PageTarget{}, eris.Wrapf(ErrMalformedAddress, "%s: %v", q.raw, err)
	}
	u.RawQuery = setPage(u.RawQuery, page)
	return PageTarget{Page: page, URL: u.String()}, nil
}

// Build is a convenience for Target(Query(input), page).
func (b *Builder) Build(input string, page int) (PageTarget, error) {
	return b.Target(b.Query(input), page)
}

// setPage replaces every page parameter in rawQuery with a single page=n at
// the position of the first one, leaving all other pairs byte-for-byte intact.
func setPage(rawQuery string, page int) string {
	value := pageParam + "=" + strconv.Itoa(page)
	if rawQuery == "" {
		return value
	}
	pairs := strings.Split(rawQuery, "&")
	out := make([]string, 0, len(pairs)+1)
	placed := false
	for _, pair := range pairs {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if key == pageParam {
			if !placed {
				out = append(out, value)
				placed = true
			}
			continue
		}
		out = append(out, pair)
	}
	if !placed {
		out = append(out, value)
	}
	return strings.Join(out, "&")
}

func bareHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
