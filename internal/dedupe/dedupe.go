// Package dedupe merges records from several pages into a unique set.
package dedupe

import "github.com/sells-group/bbb-scraper/internal/model"

// Records returns the unique records of in, in first-seen order. Records are
// keyed by business ID, falling back to phone number. The first record seen
// for a key wins; later duplicates are dropped without merging. Records with
// neither key cannot be compared and are all kept.
func Records(in []*model.Business) []*model.Business {
	seen := make(map[string]struct{}, len(in))
	out := make([]*model.Business, 0, len(in))
	for _, b := range in {
		if b == nil {
			continue
		}
		key, ok := b.DedupeKey()
		if ok {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, b)
	}
	return out
}
