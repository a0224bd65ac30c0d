package service

import "strings"

// scopeTemplates holds the per-category work scope lines shown to clients
// and providers. Categories without a template fall back to handyman.
var scopeTemplates = map[string][]string{
	"plumbing": {
		"• Shut off water supply",
		"• Remove old fixtures",
		"• Install new plumbing components",
		"• Test for leaks and proper flow",
		"• Clean and restore work area",
	},
	"electrical": {
		"• Turn off circuit breaker",
		"• Remove old electrical components",
		"• Install new wiring/fixtures safely",
		"• Test electrical connections",
		"• Restore power and verify operation",
	},
	"handyman": {
		"• Assess and prepare work area",
		"• Remove damaged materials",
		"• Install replacement components",
		"• Apply finishing touches",
		"• Clean and inspect completed work",
	},
}

// GenerateScope renders the work scope text for a category.
func GenerateScope(category string) string {
	lines, ok := scopeTemplates[category]
	if !ok {
		lines = scopeTemplates["handyman"]
	}
	return strings.Join(lines, "\n")
}
