package pages

import (
	"strconv"

	"flow-cli/internal/model"
)

const recentCount = 3

// Summary is the dashboard view of a collection.
type Summary struct {
	Total  int          `json:"total"`
	Recent []model.Page `json:"recent"`
}

// Summarize counts ps and picks the last few pages, newest first. The collection is in server
// order, which is creation order.
func Summarize(ps []model.Page) Summary {
	n := min(recentCount, len(ps))
	recent := make([]model.Page, 0, n)
	for i := len(ps) - 1; i >= len(ps)-n; i-- {
		recent = append(recent, ps[i])
	}
	return Summary{Total: len(ps), Recent: recent}
}

// CountLabel renders "1 page" or "N pages".
func (s Summary) CountLabel() string {
	if s.Total == 1 {
		return "1 page"
	}
	return strconv.Itoa(s.Total) + " pages"
}

const previewLen = 120

// Preview cuts content to the first previewLen runes for list rows.
func Preview(content string) string {
	if content == "" {
		return "No content yet..."
	}
	r := []rune(content)
	if len(r) <= previewLen {
		return content
	}
	return string(r[:previewLen])
}
