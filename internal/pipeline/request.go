package pipeline

import (
	"strings"

	"github.com/sells-group/bbb-scraper/internal/model"
	"github.com/sells-group/bbb-scraper/internal/session"
)

// Request is one scrape invocation.
type Request struct {
	SearchInput string
	Pages       int
	// Proxy, when set, replaces the session profile's proxy for this run.
	Proxy session.Proxy
}

// Validate checks req before any fetch and returns it with the search input
// trimmed. Failures are *model.ValidationError.
func Validate(req Request, maxPages int) (Request, error) {
	req.SearchInput = strings.TrimSpace(req.SearchInput)
	if req.SearchInput == "" {
		return req, model.NewValidationError("search_input", "must not be empty")
	}
	if maxPages < 1 || maxPages > model.MaxPages {
		maxPages = model.MaxPages
	}
	if req.Pages < 1 || req.Pages > maxPages {
		return req, model.NewValidationError("pages", "must be between 1 and %d, got %d", maxPages, req.Pages)
	}
	if err := req.Proxy.Validate(); err != nil {
		return req, model.NewValidationError("proxy", "%s", err.Error())
	}
	return req, nil
}
