package remediate

import (
	"fmt"
	"strings"
)

// maxCommentFeedback bounds how much review feedback is echoed into an
// issue comment. The full feedback still goes into the remediation prompt.
const maxCommentFeedback = 500

// mergeComment describes a merge attempt's outcome. mergeErr nil means the
// merge was queued successfully.
func mergeComment(prNumber int, prURL, workflowID string, mergeErr error) string {
	var b strings.Builder
	if mergeErr == nil {
		b.WriteString("**PR Merged Successfully**\n\n")
		fmt.Fprintf(&b, "**PR:** [#%d](%s)\n", prNumber, prURL)
		fmt.Fprintf(&b, "**ADW ID:** `%s`\n\n", workflowID)
		b.WriteString("The pull request has been automatically merged after passing review.")
		return b.String()
	}

	b.WriteString("**Automatic Merge Failed**\n\n")
	fmt.Fprintf(&b, "**PR:** [#%d](%s)\n", prNumber, prURL)
	fmt.Fprintf(&b, "**ADW ID:** `%s`\n\n", workflowID)
	b.WriteString("The pull request was approved but automatic merge failed.\n\n")
	fmt.Fprintf(&b, "**Error:**\n```\n%s\n```\n\n", mergeErr.Error())
	b.WriteString("**Next Steps:**\n")
	b.WriteString("- Check for merge conflicts\n")
	b.WriteString("- Ensure all required checks have passed\n")
	b.WriteString("- Try merging manually or re-running the workflow")
	return b.String()
}

// maxAttemptsComment explains why automatic remediation stopped.
func maxAttemptsComment(count, max int) string {
	var b strings.Builder
	b.WriteString("**Maximum Re-Implementation Attempts Reached**\n\n")
	fmt.Fprintf(&b, "**Attempts:** %d/%d\n\n", count, max)
	fmt.Fprintf(&b, "The automatic re-implementation workflow has been attempted %d times for this issue. To prevent infinite loops, manual intervention is now required.\n\n", count)
	b.WriteString("**Next Steps:**\n")
	b.WriteString("- Review the previous implementation attempts\n")
	b.WriteString("- Address the issues manually\n")
	b.WriteString("- Consider if the requirements need clarification\n")
	b.WriteString("- Close and re-open the issue to reset the counter if needed")
	return b.String()
}

// reimplementationComment announces a new implementation cycle. Feedback
// longer than maxCommentFeedback is truncated.
func reimplementationComment(reviewWorkflowID, newWorkflowID, feedback string) string {
	if len(feedback) > maxCommentFeedback {
		feedback = feedback[:maxCommentFeedback] + "..."
	}

	var b strings.Builder
	b.WriteString("**Re-Implementation Started**\n\n")
	fmt.Fprintf(&b, "**Review ADW ID:** `%s`\n", reviewWorkflowID)
	fmt.Fprintf(&b, "**New ADW ID:** `%s`\n\n", newWorkflowID)
	b.WriteString("The previous implementation received change requests. A new implementation cycle has been started to address the review feedback.\n\n")
	fmt.Fprintf(&b, "**Review Feedback:**\n%s\n\n", feedback)
	b.WriteString("Results will be posted when the re-implementation completes.")
	return b.String()
}
