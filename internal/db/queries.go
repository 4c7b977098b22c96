package db

import (
	"database/sql"
	"fmt"
)

// WorkflowEvent represents a row in the workflow_events table.
type WorkflowEvent struct {
	ID         int
	WorkflowID string
	Issue      int
	Kind       string
	Event      string
	Detail     string
	Timestamp  string
}

// ReviewResult represents a row in the review_results table.
type ReviewResult struct {
	ID             int
	WorkflowID     string
	Issue          int
	PRNumber       int
	ApprovalStatus string
	Action         string
	Attempt        int
	Summary        string
	Timestamp      string
}

// LogWorkflowEvent inserts a workflow event.
func (d *DB) LogWorkflowEvent(workflowID string, issue int, kind string, event string, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO workflow_events (workflow_id, issue, kind, event, detail) VALUES (?, ?, ?, ?, ?)`,
		workflowID, issue, kind, event, detail,
	)
	if err != nil {
		return fmt.Errorf("log workflow event: %w", err)
	}
	return nil
}

// GetWorkflowHistory returns all workflow events for an issue, newest first.
func (d *DB) GetWorkflowHistory(issue int) ([]WorkflowEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, workflow_id, issue, kind, event, detail, timestamp
		 FROM workflow_events WHERE issue = ? ORDER BY timestamp DESC, id DESC`,
		issue,
	)
	if err != nil {
		return nil, fmt.Errorf("get workflow history: %w", err)
	}
	defer rows.Close()

	var events []WorkflowEvent
	for rows.Next() {
		var e WorkflowEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.Issue, &e.Kind, &e.Event, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetWorkflowState returns the most recent event for a workflow run.
func (d *DB) GetWorkflowState(workflowID string) (*WorkflowEvent, error) {
	row := d.conn.QueryRow(
		`SELECT id, workflow_id, issue, kind, event, detail, timestamp
		 FROM workflow_events WHERE workflow_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`,
		workflowID,
	)
	var e WorkflowEvent
	var detail sql.NullString
	err := row.Scan(&e.ID, &e.WorkflowID, &e.Issue, &e.Kind, &e.Event, &detail, &e.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow state: %w", err)
	}
	if detail.Valid {
		e.Detail = detail.String
	}
	return &e, nil
}

// GetActiveWorkflows returns workflows whose most recent event is not
// terminal (completed or failed).
func (d *DB) GetActiveWorkflows() ([]WorkflowEvent, error) {
	rows, err := d.conn.Query(`
		SELECT we.id, we.workflow_id, we.issue, we.kind, we.event, we.detail, we.timestamp
		FROM workflow_events we
		INNER JOIN (
			SELECT workflow_id, MAX(id) as max_id
			FROM workflow_events
			GROUP BY workflow_id
		) latest ON we.id = latest.max_id
		WHERE we.event NOT IN ('completed', 'failed')
	`)
	if err != nil {
		return nil, fmt.Errorf("get active workflows: %w", err)
	}
	defer rows.Close()

	var events []WorkflowEvent
	for rows.Next() {
		var e WorkflowEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.WorkflowID, &e.Issue, &e.Kind, &e.Event, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan workflow event: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LogReviewResult inserts a review outcome.
func (d *DB) LogReviewResult(workflowID string, issue int, prNumber int, approvalStatus string, action string, attempt int, summary string) error {
	_, err := d.conn.Exec(
		`INSERT INTO review_results (workflow_id, issue, pr_number, approval_status, action, attempt, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		workflowID, issue, prNumber, approvalStatus, action, attempt, summary,
	)
	if err != nil {
		return fmt.Errorf("log review result: %w", err)
	}
	return nil
}

// GetLatestReview returns the most recent review result for an issue,
// or nil if the issue was never reviewed.
func (d *DB) GetLatestReview(issue int) (*ReviewResult, error) {
	row := d.conn.QueryRow(
		`SELECT id, workflow_id, issue, pr_number, approval_status, action, attempt, summary, timestamp
		 FROM review_results WHERE issue = ? ORDER BY id DESC LIMIT 1`,
		issue,
	)
	var r ReviewResult
	var prNumber sql.NullInt64
	var summary sql.NullString
	err := row.Scan(&r.ID, &r.WorkflowID, &r.Issue, &prNumber, &r.ApprovalStatus, &r.Action, &r.Attempt, &summary, &r.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest review: %w", err)
	}
	if prNumber.Valid {
		r.PRNumber = int(prNumber.Int64)
	}
	if summary.Valid {
		r.Summary = summary.String
	}
	return &r, nil
}

// GetReviewHistory returns all review results for an issue, newest first.
func (d *DB) GetReviewHistory(issue int) ([]ReviewResult, error) {
	rows, err := d.conn.Query(
		`SELECT id, workflow_id, issue, pr_number, approval_status, action, attempt, summary, timestamp
		 FROM review_results WHERE issue = ? ORDER BY id DESC`,
		issue,
	)
	if err != nil {
		return nil, fmt.Errorf("get review history: %w", err)
	}
	defer rows.Close()

	var results []ReviewResult
	for rows.Next() {
		var r ReviewResult
		var prNumber sql.NullInt64
		var summary sql.NullString
		if err := rows.Scan(&r.ID, &r.WorkflowID, &r.Issue, &prNumber, &r.ApprovalStatus, &r.Action, &r.Attempt, &summary, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan review result: %w", err)
		}
		if prNumber.Valid {
			r.PRNumber = int(prNumber.Int64)
		}
		if summary.Valid {
			r.Summary = summary.String
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
