package workflow

import (
	"fmt"
	"time"

	"github.com/civixhq/civix/app/models"
)

// Actor identifies who is requesting a transition. Role is always re-derived
// server-side from the session or API key, never taken from client claims.
// Email is set for reporter-only operations so account-less reporters can act
// through a verified acknowledgement token.
type Actor struct {
	UserID uint
	Name   string
	Email  string
	Role   string
}

// AssignData carries the officer chosen for a Pending → Assigned edge,
// either picked manually or confirmed from a scorer suggestion.
type AssignData struct {
	Officer *models.User
	Score   int
	Manual  bool
}

// ResolutionData carries an officer's close-out proof for the
// Assigned/In Progress → Pending Review edge.
type ResolutionData struct {
	ProofKey      string
	ProofThumbKey string
	ProofTakenAt  *time.Time
	OfficerNotes  string
}

// Request describes one requested transition. NewStatus selects the edge;
// the optional payloads feed its guard.
type Request struct {
	NewStatus  string
	Remarks    string
	Assign     *AssignData
	Resolution *ResolutionData
}

// edge is one legal row of the transition table.
type edge struct {
	from  string
	to    string
	role  string // minimum role required; moderator edges also admit admins
	guard func(issue *models.Issue, actor Actor, req Request) error
	apply func(issue *models.Issue, actor Actor, req Request)
}

// Machine validates and applies status transitions in memory. Persistence
// and side effects (officer load, trust scores, notifications) belong to the
// Service; Apply itself mutates only the passed issue and only after every
// guard has passed.
type Machine struct {
	edges []edge
}

func NewMachine() *Machine {
	return &Machine{edges: transitionTable()}
}

// Apply runs the (issue.Status → req.NewStatus) edge for the given actor.
// It returns ErrInvalidStateTransition when no such edge exists (terminal
// states included), ErrUnauthorizedActor when the edge exists but the actor's
// role or identity does not match, and ErrMissingRequiredField when the
// edge's payload is incomplete. The issue is untouched on any error.
func (m *Machine) Apply(issue *models.Issue, actor Actor, req Request) error {
	var match *edge
	roleMismatch := false

	for i := range m.edges {
		e := &m.edges[i]
		if e.from != issue.Status || e.to != req.NewStatus {
			continue
		}
		if !roleAllowed(e.role, actor.Role) {
			roleMismatch = true
			continue
		}
		match = e
		break
	}

	if match == nil {
		if roleMismatch {
			return fmt.Errorf("%w: role %q may not move %q to %q",
				ErrUnauthorizedActor, actor.Role, issue.Status, req.NewStatus)
		}
		return fmt.Errorf("%w: %q to %q", ErrInvalidStateTransition, issue.Status, req.NewStatus)
	}

	if match.guard != nil {
		if err := match.guard(issue, actor, req); err != nil {
			return err
		}
	}

	match.apply(issue, actor, req)
	return nil
}

// roleAllowed reports whether an actor role satisfies an edge requirement.
// Admins supervise moderators and may take any moderator edge; officer edges
// are exclusive to officers (identity is checked separately in the guard).
func roleAllowed(required, actual string) bool {
	if required == actual {
		return true
	}
	return required == models.ROLE_MODERATOR && actual == models.ROLE_ADMIN
}

func transitionTable() []edge {
	assign := edge{
		from: models.IssueStatusPending,
		to:   models.IssueStatusAssigned,
		role: models.ROLE_MODERATOR,
		guard: func(issue *models.Issue, actor Actor, req Request) error {
			if req.Assign == nil || req.Assign.Officer == nil {
				return fmt.Errorf("%w: officer", ErrMissingRequiredField)
			}
			if req.Assign.Officer.Role != models.ROLE_OFFICER {
				return fmt.Errorf("%w: user %d is not an officer", ErrMissingRequiredField, req.Assign.Officer.ID)
			}
			return nil
		},
		apply: func(issue *models.Issue, actor Actor, req Request) {
			officer := req.Assign.Officer
			issue.Status = models.IssueStatusAssigned
			issue.Assignment = &models.Assignment{
				OfficerID:   officer.ID,
				OfficerName: officer.Name,
				AssignedAt:  time.Now(),
				Score:       req.Assign.Score,
			}
			msg := fmt.Sprintf("Assigned to Officer %s (load: %d)", officer.Name, officer.ActiveTasks)
			if req.Assign.Manual {
				msg = fmt.Sprintf("Manually assigned to Officer %s by Moderator", officer.Name)
			}
			issue.AppendTimeline(models.IssueStatusAssigned, msg, actor.Name)
		},
	}

	escalate := func(from string) edge {
		return edge{
			from: from,
			to:   models.IssueStatusEscalated,
			role: models.ROLE_MODERATOR,
			apply: func(issue *models.Issue, actor Actor, req Request) {
				issue.Status = models.IssueStatusEscalated
				issue.Priority = models.PriorityHigh
				msg := req.Remarks
				if msg == "" {
					msg = "Issue escalated"
				}
				issue.AppendTimeline(models.IssueStatusEscalated, msg, actor.Name)
			},
		}
	}

	reject := func(from string) edge {
		return edge{
			from: from,
			to:   models.IssueStatusRejected,
			role: models.ROLE_MODERATOR,
			guard: func(issue *models.Issue, actor Actor, req Request) error {
				// Rejecting an issue the classifier called genuine demands
				// written justification; remarks are optional otherwise.
				if issue.AIAnalysis != nil && !issue.AIAnalysis.IsFake && req.Remarks == "" {
					return fmt.Errorf("%w: remarks (issue classified as genuine)", ErrMissingRequiredField)
				}
				return nil
			},
			apply: func(issue *models.Issue, actor Actor, req Request) {
				issue.Status = models.IssueStatusRejected
				msg := req.Remarks
				if msg == "" {
					msg = "Issue rejected"
				}
				issue.AppendTimeline(models.IssueStatusRejected, msg, actor.Name)
			},
		}
	}

	submit := func(from string) edge {
		return edge{
			from: from,
			to:   models.IssueStatusPendingReview,
			role: models.ROLE_OFFICER,
			guard: func(issue *models.Issue, actor Actor, req Request) error {
				if issue.Assignment == nil || issue.Assignment.OfficerID != actor.UserID {
					return fmt.Errorf("%w: issue is not assigned to officer %d", ErrUnauthorizedActor, actor.UserID)
				}
				if req.Resolution == nil || req.Resolution.ProofKey == "" {
					return fmt.Errorf("%w: proof", ErrMissingRequiredField)
				}
				if req.Resolution.OfficerNotes == "" {
					return fmt.Errorf("%w: officer notes", ErrMissingRequiredField)
				}
				return nil
			},
			apply: func(issue *models.Issue, actor Actor, req Request) {
				issue.Status = models.IssueStatusPendingReview
				// A fresh submission supersedes any earlier proof; the prior
				// attempt stays visible through the timeline.
				issue.Resolution = &models.Resolution{
					ProofKey:      req.Resolution.ProofKey,
					ProofThumbKey: req.Resolution.ProofThumbKey,
					ProofTakenAt:  req.Resolution.ProofTakenAt,
					OfficerNotes:  req.Resolution.OfficerNotes,
					SubmittedAt:   time.Now(),
				}
				issue.AppendTimeline(models.IssueStatusPendingReview,
					"Officer submitted resolution proof. Waiting for Moderator approval.", actor.Name)
			},
		}
	}

	approve := edge{
		from: models.IssueStatusPendingReview,
		to:   models.IssueStatusResolved,
		role: models.ROLE_MODERATOR,
		guard: func(issue *models.Issue, actor Actor, req Request) error {
			if issue.Resolution == nil {
				return fmt.Errorf("%w: no resolution submitted", ErrInvalidStateTransition)
			}
			return nil
		},
		apply: func(issue *models.Issue, actor Actor, req Request) {
			issue.Status = models.IssueStatusResolved
			issue.Resolution.ModeratorApproval = &models.ModeratorApproval{
				IsApproved: true,
				Remarks:    req.Remarks,
				ReviewedBy: actor.Name,
				ReviewedAt: time.Now(),
			}
			issue.AppendTimeline(models.IssueStatusResolved,
				"Moderator approved resolution.", actor.Name)
		},
	}

	reviewReject := edge{
		from: models.IssueStatusPendingReview,
		to:   models.IssueStatusInProgress,
		role: models.ROLE_MODERATOR,
		guard: func(issue *models.Issue, actor Actor, req Request) error {
			if issue.Resolution == nil {
				return fmt.Errorf("%w: no resolution submitted", ErrInvalidStateTransition)
			}
			if req.Remarks == "" {
				return fmt.Errorf("%w: remarks", ErrMissingRequiredField)
			}
			return nil
		},
		apply: func(issue *models.Issue, actor Actor, req Request) {
			issue.Status = models.IssueStatusInProgress
			// Proof and notes are kept for audit; the officer's next
			// submission replaces them.
			issue.Resolution.ModeratorApproval = &models.ModeratorApproval{
				IsApproved: false,
				Remarks:    req.Remarks,
				ReviewedBy: actor.Name,
				ReviewedAt: time.Now(),
			}
			issue.AppendTimeline(models.IssueStatusInProgress,
				fmt.Sprintf("Moderator rejected resolution: %s", req.Remarks), actor.Name)
		},
	}

	return []edge{
		assign,
		escalate(models.IssueStatusAssigned),
		escalate(models.IssueStatusInProgress),
		reject(models.IssueStatusPending),
		reject(models.IssueStatusAssigned),
		reject(models.IssueStatusInProgress),
		submit(models.IssueStatusAssigned),
		submit(models.IssueStatusInProgress),
		approve,
		reviewReject,
	}
}
