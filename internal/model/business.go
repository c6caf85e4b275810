package model

// MaxPages is the largest number of search pages one scrape may request.
const MaxPages = 50

// Business is the canonical record for one listed business. Optional fields
// are nil when the source did not provide a usable value; an empty string is
// never used to mean "absent".
type Business struct {
	ID               string  `json:"business_id"`
	Name             string  `json:"name"`
	Phone            *string `json:"phone"`
	PrincipalContact *string `json:"principal_contact"`
	URL              string  `json:"url"`
	StreetAddress    *string `json:"street_address"`
	City             *string `json:"city"`
	State            *string `json:"state"`
	PostalCode       *string `json:"postal_code"`
	Accredited       bool    `json:"accreditation_status"`
}

// DedupeKey returns the uniqueness key for the record: the business ID when
// present, otherwise the normalized phone number. ok is false when the record
// carries neither.
func (b *Business) DedupeKey() (key string, ok bool) {
	if b.ID != "" {
		return "id:" + b.ID, true
	}
	if b.Phone != nil && *b.Phone != "" {
		return "phone:" + *b.Phone, true
	}
	return "", false
}

// ScrapeResult is the assembled output of one pipeline invocation.
type ScrapeResult struct {
	TotalBusinesses int        `json:"total_businesses"`
	PagesScraped    int        `json:"pages_scraped"`
	Businesses      []Business `json:"businesses"`
}

// Str dereferences an optional string, returning "" for nil.
func Str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
