package prompt

// Template names accepted by Load and RenderTemplate.
const (
	TemplatePlan      = "plan.md"
	TemplateImplement = "implement.md"
	TemplateReview    = "review.md"
	TemplateRemediate = "remediate.md"
)

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	TemplatePlan:      planTemplate,
	TemplateImplement: implementTemplate,
	TemplateReview:    reviewTemplate,
	TemplateRemediate: remediateTemplate,
}

const planTemplate = `# Plan: {{issue_title}}

> **Do not invoke any skills or slash commands** (e.g. /superpowers, /commit, or any /command). Use only built-in tools.

## Issue #{{issue_number}}
{{issue_body}}

## Instructions
1. Read the relevant code to understand the current state
2. Write an implementation plan as a markdown file under specs/
3. Name the file specs/chore-<short-slug>.md where the slug describes the task
4. The plan must list the files to change, the approach, and the test strategy
5. Output the path of the plan file you created on its own line
`

const implementTemplate = `# Implement: {{issue_title}}

> **Do not invoke any skills or slash commands** (e.g. /superpowers, /commit, or any /command). Use only built-in tools.

## Issue #{{issue_number}}
{{issue_body}}

{{#if plan_file}}
## Plan
Follow the implementation plan at {{plan_file}}. Read it first.
{{/if}}

## Instructions
1. Read the relevant code to understand the current state
2. Implement the change described above
3. Write or update tests for your changes
4. Run tests to verify they pass
5. When complete, ensure all changes are committed
`

const reviewTemplate = `# Code Review: {{issue_title}}

> **Do not invoke any skills or slash commands** (e.g. /superpowers, /commit, or any /command). Use only built-in tools.

## Issue #{{issue_number}}
{{issue_body}}

{{#if diff_summary}}
## Changes Summary
{{diff_summary}}
{{/if}}

## Review Instructions

Your job is adversarial review. Assume the implementation is wrong until
proven otherwise. Read every changed file in full, do not skim. Look for
missing error handling, untested edge cases, and silently broken behavior.

## Output Format

End your review with exactly this structure. Severity sub-sections with no
issues must contain the single word None.

## Approval Status
[APPROVED | CHANGES_REQUESTED | NEEDS_DISCUSSION]

## Summary
One paragraph on the overall state of the change.

## Recommendations
1. Numbered, actionable recommendations (or None)

## Issues Found

### Critical
- Issues that must block the merge (or None)

### Moderate
- Issues that should be fixed soon (or None)

### Minor
- Nits and polish (or None)
`

const remediateTemplate = `# Original Task
{{original_prompt}}

# Review Feedback
The previous implementation received the following review feedback:

{{feedback}}

# Instructions
Re-implement the task addressing all the review feedback above. Fix every
issue listed, apply the recommendations where they make sense, and make sure
the result still satisfies the original task.
`
