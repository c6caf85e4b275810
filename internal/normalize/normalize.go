// Package normalize maps extracted payloads onto model.Business records.
// Search results and detail pages are read by separate functions over the
// same payload type.
package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sells-group/bbb-scraper/internal/extract"
	"github.com/sells-group/bbb-scraper/internal/model"
)

// Options carries source constants the normalizer needs.
type Options struct {
	Origin      string
	CallingCode string
}

// DefaultOptions returns the options for www.bbb.org.
func DefaultOptions() Options {
	return Options{Origin: "https://www.bbb.org", CallingCode: "+1"}
}

var (
	emphasisTag = regexp.MustCompile(`(?i)</?em\s*>`)
	profileID   = regexp.MustCompile(`-(\d+)(?:/addressId/\d+)?/?$`)
)

// SearchResults reads every entry under searchResult.results. A missing or
// unusable field leaves that field absent without dropping the record.
func SearchResults(p extract.Payload, opts Options) []*model.Business {
	results := p.Get("searchResult.results")
	if !results.IsArray() {
		return nil
	}

	var out []*model.Business
	for _, r := range results.Array() {
		if !r.IsObject() {
			continue
		}
		out = append(out, searchRecord(r, opts))
	}
	return out
}

func searchRecord(r gjson.Result, opts Options) *model.Business {
	b := &model.Business{
		ID:            strings.TrimSpace(r.Get("businessId").String()),
		Name:          strings.TrimSpace(StripEmphasis(r.Get("businessName").String())),
		Phone:         NormalizePhone(firstValue(r.Get("phone")), opts.CallingCode),
		URL:           ResolveURL(opts.Origin, strings.TrimSpace(r.Get("reportUrl").String())),
		StreetAddress: trimmed(r.Get("address")),
		City:          trimmed(r.Get("city")),
		State:         trimmed(r.Get("state")),
		PostalCode:    trimmed(r.Get("postalcode")),
		Accredited:    r.Get("accreditedCharity").Bool(),
	}
	if b.ID == "" {
		b.ID = IDFromURL(b.URL)
	}
	return b
}

// PrincipalContact returns the display name of the first principal contact
// with a non-empty name, or nil.
func PrincipalContact(p extract.Payload) *string {
	contacts := p.Get("businessProfile.contactInformation.contacts")
	if !contacts.IsArray() {
		return nil
	}
	for _, c := range contacts.Array() {
		if !c.Get("isPrincipal").Bool() {
			continue
		}
		if name := joinName(c.Get("name")); name != "" {
			return &name
		}
	}
	return nil
}

// joinName joins the non-empty name parts in prefix, first, middle, last order.
func joinName(name gjson.Result) string {
	if !name.IsObject() {
		return ""
	}
	parts := make([]string, 0, 4)
	for _, key := range []string{"prefix", "first", "middle", "last"} {
		if v := strings.TrimSpace(name.Get(key).String()); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// NormalizePhone strips raw to digits and prefixes the calling code.
// It returns nil when no digits remain.
func NormalizePhone(raw, callingCode string) *string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	phone := callingCode + b.String()
	return &phone
}

// StripEmphasis removes <em> highlight tags from search-result text.
func StripEmphasis(s string) string {
	return emphasisTag.ReplaceAllString(s, "")
}

// ResolveURL makes ref absolute against origin. Absolute refs are returned
// unchanged; an empty ref yields "".
func ResolveURL(origin, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if u.IsAbs() {
		return ref
	}
	base, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

// IDFromURL recovers the numeric business ID that ends a profile URL,
// optionally followed by an /addressId/N segment. It returns "" if none.
func IDFromURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	m := profileID.FindStringSubmatch(path)
	if m == nil {
		return ""
	}
	return m[1]
}

// firstValue returns the first element of an array, or the value itself.
func firstValue(v gjson.Result) string {
	if v.IsArray() {
		arr := v.Array()
		if len(arr) == 0 {
			return ""
		}
		return arr[0].String()
	}
	if v.Type == gjson.Null {
		return ""
	}
	return v.String()
}

func trimmed(v gjson.Result) *string {
	if v.IsObject() || v.IsArray() {
		return nil
	}
	return model.StrPtr(strings.TrimSpace(v.String()))
}
