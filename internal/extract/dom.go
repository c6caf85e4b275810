package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/tidwall/sjson"
)

// Rendered result cards, as served when the embedded state is absent.
const (
	selResultCard   = ".card.result-card"
	selResultName   = "h3.result-business-name a"
	selResultPhone  = `a[href^="tel:"]`
	selResultAddr   = `.result-business-info p[translate="no"]`
	selAccreditSeal = `img[alt="Accredited Business"]`
)

// SearchFromDOM rebuilds a search payload from rendered result cards. The
// synthesized payload has the same shape as the embedded state, so the
// normalizer reads either. It returns false when no cards are present.
func SearchFromDOM(doc string) (Payload, bool, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return Payload{}, false, eris.Wrap(err, "extract: parse html")
	}

	cards := d.Find(selResultCard)
	if cards.Length() == 0 {
		return Payload{}, false, nil
	}

	out := `{"searchResult":{"results":[]}}`
	var setErr error
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		entry := "{}"
		link := card.Find(selResultName).First()
		if name := collapse(link.Text()); name != "" {
			entry, setErr = sjson.Set(entry, "businessName", name)
			if setErr != nil {
				return false
			}
		}
		if href, ok := link.Attr("href"); ok && href != "" {
			entry, setErr = sjson.Set(entry, "reportUrl", href)
			if setErr != nil {
				return false
			}
		}
		if phone := collapse(card.Find(selResultPhone).First().Text()); phone != "" {
			entry, setErr = sjson.Set(entry, "phone", []string{phone})
			if setErr != nil {
				return false
			}
		}
		if addr := collapse(card.Find(selResultAddr).First().Text()); addr != "" {
			street, _, _ := strings.Cut(addr, ",")
			entry, setErr = sjson.Set(entry, "address", strings.TrimSpace(street))
			if setErr != nil {
				return false
			}
		}
		entry, setErr = sjson.Set(entry, "accreditedCharity", card.Find(selAccreditSeal).Length() > 0)
		if setErr != nil {
			return false
		}
		out, setErr = sjson.SetRaw(out, "searchResult.results.-1", entry)
		return setErr == nil
	})
	if setErr != nil {
		return Payload{}, false, eris.Wrap(setErr, "extract: build search payload")
	}

	p, ok := NewPayload(out)
	return p, ok, nil
}

// DetailFromDOM rebuilds a detail payload from the rendered "Principal
// Contacts" definition. The rendered text carries a title after a comma;
// only the name before it is kept, stored as a single principal contact.
func DetailFromDOM(doc string) (Payload, bool, error) {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return Payload{}, false, eris.Wrap(err, "extract: parse html")
	}

	var name string
	d.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		if !strings.Contains(dt.Text(), "Principal Contacts") {
			return true
		}
		text := collapse(dt.NextFiltered("dd").Text())
		name, _, _ = strings.Cut(text, ",")
		name = strings.TrimSpace(name)
		return false
	})
	if name == "" {
		return Payload{}, false, nil
	}

	out, err := sjson.Set(`{}`, "businessProfile.contactInformation.contacts", []map[string]any{{
		"isPrincipal": true,
		"name":        map[string]string{"first": name},
	}})
	if err != nil {
		return Payload{}, false, eris.Wrap(err, "extract: build detail payload")
	}
	p, ok := NewPayload(out)
	return p, ok, nil
}

// collapse trims s and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
