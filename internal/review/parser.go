package review

import (
	"regexp"
	"strings"
)

// Status is the three-way classification of a review outcome.
type Status string

const (
	StatusApproved         Status = "APPROVED"
	StatusChangesRequested Status = "CHANGES_REQUESTED"
	StatusNeedsDiscussion  Status = "NEEDS_DISCUSSION"
)

// Severity tags an issue found during review.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityModerate Severity = "Moderate"
	SeverityMinor    Severity = "Minor"
)

// Severities lists the severity buckets in reporting order.
var Severities = []Severity{SeverityCritical, SeverityModerate, SeverityMinor}

// Verdict is the structured result parsed from a reviewer agent's free-text
// output. It is derived fresh for each review and never mutated.
type Verdict struct {
	Status          Status               `json:"approval_status"`
	Summary         string               `json:"summary"`
	Recommendations []string             `json:"recommendations"`
	Issues          map[Severity][]string `json:"issues"`
}

// HasIssues reports whether any severity bucket is non-empty.
func (v *Verdict) HasIssues() bool {
	for _, sev := range Severities {
		if len(v.Issues[sev]) > 0 {
			return true
		}
	}
	return false
}

var (
	approvalRe = regexp.MustCompile(`(?i)##\s*Approval\s*Status\s*\n\s*\[?\s*(APPROVED|CHANGES[\s_]*REQUESTED|NEEDS[\s_]*DISCUSSION)\s*\]?`)
	summaryRe  = regexp.MustCompile(`(?i)##\s*Summary\s*\n`)
	recsRe     = regexp.MustCompile(`(?i)##\s*Recommendations\s*\n`)
	issuesRe   = regexp.MustCompile(`(?i)##\s*Issues\s*Found\s*\n`)

	// A top-level heading: "##" not followed by another "#". Used as the
	// boundary when slicing sections so that "###" sub-headings stay
	// inside their parent block.
	nextTopRe = regexp.MustCompile(`(?m)^##([^#]|$)`)

	listItemRe   = regexp.MustCompile(`(?m)^\s*(?:-|\*|\d+\.)\s*(.+)$`)
	whitespaceRe = regexp.MustCompile(`[\s_]+`)
)

// Parse converts a reviewer agent's raw output into a Verdict. It never
// fails: input that matches nothing yields NEEDS_DISCUSSION with empty
// summary, recommendations, and issue lists. Malformed agent output must
// degrade silently rather than break the review control loop.
func Parse(raw string) Verdict {
	v := Verdict{
		Status:          StatusNeedsDiscussion,
		Recommendations: []string{},
		Issues:          emptyIssues(),
	}

	v.Status = parseStatus(raw)

	if body, ok := section(raw, summaryRe); ok {
		v.Summary = strings.TrimSpace(body)
	}

	if body, ok := section(raw, recsRe); ok {
		v.Recommendations = parseListItems(body)
	}

	v.Issues = parseIssues(raw)
	return v
}

// parseStatus extracts the approval status. It prefers a structured
// "## Approval Status" header (tolerating brackets and internal
// whitespace), then falls back to scanning the whole text for the
// literal tokens, and finally defaults to NEEDS_DISCUSSION.
func parseStatus(raw string) Status {
	if m := approvalRe.FindStringSubmatch(raw); m != nil {
		token := whitespaceRe.ReplaceAllString(strings.ToUpper(m[1]), "_")
		switch {
		case strings.Contains(token, "APPROVED"):
			return StatusApproved
		case strings.Contains(token, "CHANGES"):
			return StatusChangesRequested
		case strings.Contains(token, "NEEDS"), strings.Contains(token, "DISCUSSION"):
			return StatusNeedsDiscussion
		}
	}

	// No structured header; scan for bare tokens in priority order.
	if strings.Contains(raw, "APPROVED") {
		return StatusApproved
	}
	if strings.Contains(raw, "CHANGES REQUESTED") || strings.Contains(raw, "CHANGES_REQUESTED") {
		return StatusChangesRequested
	}
	return StatusNeedsDiscussion
}

// parseIssues extracts the "## Issues Found" block and splits it into
// severity buckets. Every severity key is present in the returned map
// even when its list is empty. A sub-section whose sole content is the
// word "None" counts as empty.
func parseIssues(raw string) map[Severity][]string {
	issues := emptyIssues()

	block, ok := section(raw, issuesRe)
	if !ok {
		return issues
	}

	for _, sev := range Severities {
		headerRe := regexp.MustCompile(`(?i)###\s*` + string(sev) + `\s*\n`)
		loc := headerRe.FindStringIndex(block)
		if loc == nil {
			continue
		}
		body := block[loc[1]:]

		// Bounded by the next sub-heading or top-level heading,
		// whichever comes first.
		end := len(body)
		if i := strings.Index(body, "###"); i >= 0 && i < end {
			end = i
		}
		if i := strings.Index(body, "\n##"); i >= 0 && i < end {
			end = i
		}
		body = strings.TrimSpace(body[:end])

		if strings.EqualFold(body, "none") {
			continue
		}
		issues[sev] = parseListItems(body)
	}

	return issues
}

// section returns the text between the header matched by headerRe and
// the next top-level heading (or end of input).
func section(raw string, headerRe *regexp.Regexp) (string, bool) {
	loc := headerRe.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	rest := raw[loc[1]:]
	if b := nextTopRe.FindStringIndex(rest); b != nil {
		rest = rest[:b[0]]
	}
	return rest, true
}

// parseListItems collects numbered, dashed, and starred line items.
func parseListItems(body string) []string {
	items := []string{}
	for _, m := range listItemRe.FindAllStringSubmatch(body, -1) {
		item := strings.TrimSpace(m[1])
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func emptyIssues() map[Severity][]string {
	return map[Severity][]string{
		SeverityCritical: {},
		SeverityModerate: {},
		SeverityMinor:    {},
	}
}
