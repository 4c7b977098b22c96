package remediate

import (
	"fmt"
	"strings"

	"github.com/lucasnoah/adwd/internal/review"
)

// BuildFeedback renders a verdict as the markdown feedback block embedded
// in the remediation prompt: summary first, then the non-empty severity
// buckets as bullet lists, then numbered recommendations. An empty verdict
// yields an empty string.
func BuildFeedback(v *review.Verdict) string {
	var parts []string

	if v.Summary != "" {
		parts = append(parts, fmt.Sprintf("## Summary\n%s\n", v.Summary))
	}

	if v.HasIssues() {
		parts = append(parts, "## Issues Found\n")
		for _, sev := range review.Severities {
			if len(v.Issues[sev]) == 0 {
				continue
			}
			parts = append(parts, fmt.Sprintf("### %s\n", sev))
			for _, item := range v.Issues[sev] {
				parts = append(parts, fmt.Sprintf("- %s\n", item))
			}
		}
	}

	if len(v.Recommendations) > 0 {
		parts = append(parts, "## Recommendations\n")
		for i, rec := range v.Recommendations {
			parts = append(parts, fmt.Sprintf("%d. %s\n", i+1, rec))
		}
	}

	return strings.Join(parts, "\n")
}
