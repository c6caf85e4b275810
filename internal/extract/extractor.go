package extract

import (
	"go.uber.org/zap"

	"github.com/sells-group/bbb-scraper/internal/monitoring"
)

// Extractor selects the payload for a page. The embedded state is preferred;
// with DOMFallback set, rendered markup is read when the state is absent or
// malformed.
type Extractor struct {
	DOMFallback bool
	Metrics     *monitoring.Metrics
}

// SearchPayload returns the search-results payload of doc.
func (e *Extractor) SearchPayload(doc string) (Payload, bool) {
	return e.payload(doc, "searchResult", SearchFromDOM)
}

// DetailPayload returns the business-profile payload of doc.
func (e *Extractor) DetailPayload(doc string) (Payload, bool) {
	return e.payload(doc, "businessProfile", DetailFromDOM)
}

func (e *Extractor) payload(doc, key string, fromDOM func(string) (Payload, bool, error)) (Payload, bool) {
	p, status := Parse(doc)
	if status == Found && !p.Get(key).Exists() {
		status = Missing
	}
	e.Metrics.Extraction("embedded", status.String())
	if status == Found {
		return p, true
	}
	if !e.DOMFallback {
		return Payload{}, false
	}

	p, ok, err := fromDOM(doc)
	if err != nil {
		zap.L().Warn("extract: dom fallback failed", zap.String("key", key), zap.Error(err))
		e.Metrics.Extraction("dom", Malformed.String())
		return Payload{}, false
	}
	if !ok {
		e.Metrics.Extraction("dom", Missing.String())
		return Payload{}, false
	}
	e.Metrics.Extraction("dom", Found.String())
	return p, true
}
