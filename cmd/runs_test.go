package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/bbb-scraper/internal/model"
	"github.com/sells-group/bbb-scraper/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID: "0123456789abcdef", SearchInput: "plumber", Pages: 3, Status: model.RunStatusComplete,
			Result:    &model.ScrapeResult{TotalBusinesses: 42},
			CreatedAt: created, UpdatedAt: created.Add(90 * time.Second),
		},
		{
			ID: "short", SearchInput: "https://www.bbb.org/search?find_text=very+long+search+input", Pages: 1,
			Status: model.RunStatusFailed, CreatedAt: created, UpdatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)
	out := buf.String()

	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "plumber")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "...")
	assert.Contains(t, out, "2026-03-01 12:00")
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, &monitoring.RunSnapshot{
		RunsTotal: 4, RunsComplete: 3, RunsFailed: 1, FailureRate: 0.25,
		BusinessesTotal: 30, AvgBusinesses: 10, PagesScrapedTotal: 6,
	})
	out := buf.String()

	assert.Contains(t, out, "Total runs:")
	assert.Contains(t, out, "25.0%")
	assert.Contains(t, out, "10.0")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
}
