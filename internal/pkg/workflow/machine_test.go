package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civixhq/civix/app/models"
)

func moderatorActor() Actor {
	return Actor{UserID: 10, Name: "Mia Moderator", Role: models.ROLE_MODERATOR}
}

func adminActor() Actor {
	return Actor{UserID: 11, Name: "Ada Admin", Role: models.ROLE_ADMIN}
}

func officerActor(id uint) Actor {
	return Actor{UserID: id, Name: "Owen Officer", Role: models.ROLE_OFFICER}
}

func testOfficer(id uint) *models.User {
	return &models.User{ID: id, Name: "Owen Officer", Role: models.ROLE_OFFICER, Department: "Roads"}
}

func issueInStatus(status string) *models.Issue {
	issue := models.NewIssue("Broken streetlight", "The light on 5th and Main has been dark for a week.")
	issue.Status = status
	return issue
}

func assignedIssue(officerID uint) *models.Issue {
	issue := issueInStatus(models.IssueStatusAssigned)
	issue.Assignment = &models.Assignment{OfficerID: officerID, OfficerName: "Owen Officer", AssignedAt: time.Now()}
	return issue
}

func TestMachineApplyEdgeValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		issue   *models.Issue
		actor   Actor
		req     Request
		wantErr error
	}{
		{
			name:    "no edge out of resolved",
			issue:   issueInStatus(models.IssueStatusResolved),
			actor:   moderatorActor(),
			req:     Request{NewStatus: models.IssueStatusAssigned, Assign: &AssignData{Officer: testOfficer(1)}},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name:    "no edge out of rejected",
			issue:   issueInStatus(models.IssueStatusRejected),
			actor:   moderatorActor(),
			req:     Request{NewStatus: models.IssueStatusEscalated},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name:    "pending cannot jump straight to resolved",
			issue:   issueInStatus(models.IssueStatusPending),
			actor:   moderatorActor(),
			req:     Request{NewStatus: models.IssueStatusResolved},
			wantErr: ErrInvalidStateTransition,
		},
		{
			name:    "citizen may not assign",
			issue:   issueInStatus(models.IssueStatusPending),
			actor:   Actor{UserID: 1, Name: "Carl Citizen", Role: models.ROLE_USER},
			req:     Request{NewStatus: models.IssueStatusAssigned, Assign: &AssignData{Officer: testOfficer(1)}},
			wantErr: ErrUnauthorizedActor,
		},
		{
			name:    "officer may not reject",
			issue:   issueInStatus(models.IssueStatusPending),
			actor:   officerActor(1),
			req:     Request{NewStatus: models.IssueStatusRejected},
			wantErr: ErrUnauthorizedActor,
		},
		{
			name:    "assignment requires an officer payload",
			issue:   issueInStatus(models.IssueStatusPending),
			actor:   moderatorActor(),
			req:     Request{NewStatus: models.IssueStatusAssigned},
			wantErr: ErrMissingRequiredField,
		},
		{
			name:  "assignment target must hold the officer role",
			issue: issueInStatus(models.IssueStatusPending),
			actor: moderatorActor(),
			req: Request{NewStatus: models.IssueStatusAssigned, Assign: &AssignData{
				Officer: &models.User{ID: 2, Name: "Not An Officer", Role: models.ROLE_USER},
			}},
			wantErr: ErrMissingRequiredField,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := NewMachine()
			before := tc.issue.Status
			err := m.Apply(tc.issue, tc.actor, tc.req)

			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before, tc.issue.Status, "issue must stay untouched on error")
		})
	}
}

func TestMachineAssign(t *testing.T) {
	t.Parallel()

	issue := issueInStatus(models.IssueStatusPending)
	officer := testOfficer(7)

	err := NewMachine().Apply(issue, moderatorActor(), Request{
		NewStatus: models.IssueStatusAssigned,
		Assign:    &AssignData{Officer: officer, Score: 85},
	})

	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusAssigned, issue.Status)
	require.NotNil(t, issue.Assignment)
	assert.Equal(t, uint(7), issue.Assignment.OfficerID)
	assert.Equal(t, 85, issue.Assignment.Score)
	assert.Equal(t, models.IssueStatusAssigned, issue.Timeline[len(issue.Timeline)-1].Status)
}

func TestMachineAdminTakesModeratorEdges(t *testing.T) {
	t.Parallel()

	issue := issueInStatus(models.IssueStatusPending)
	err := NewMachine().Apply(issue, adminActor(), Request{
		NewStatus: models.IssueStatusAssigned,
		Assign:    &AssignData{Officer: testOfficer(3)},
	})

	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusAssigned, issue.Status)
}

func TestMachineEscalationForcesHighPriority(t *testing.T) {
	t.Parallel()

	for _, from := range []string{models.IssueStatusAssigned, models.IssueStatusInProgress} {
		issue := issueInStatus(from)
		issue.Priority = models.PriorityLow

		err := NewMachine().Apply(issue, moderatorActor(), Request{NewStatus: models.IssueStatusEscalated})

		require.NoError(t, err)
		assert.Equal(t, models.IssueStatusEscalated, issue.Status)
		assert.Equal(t, models.PriorityHigh, issue.Priority)
	}
}

func TestMachineRejectGenuineIssueNeedsRemarks(t *testing.T) {
	t.Parallel()

	issue := issueInStatus(models.IssueStatusPending)
	issue.AIAnalysis = &models.AIAnalysis{IsFake: false, AnalyzedAt: time.Now()}

	m := NewMachine()
	err := m.Apply(issue, moderatorActor(), Request{NewStatus: models.IssueStatusRejected})
	assert.ErrorIs(t, err, ErrMissingRequiredField)
	assert.Equal(t, models.IssueStatusPending, issue.Status)

	err = m.Apply(issue, moderatorActor(), Request{NewStatus: models.IssueStatusRejected, Remarks: "Duplicate of an older report"})
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusRejected, issue.Status)
}

func TestMachineRejectFakeIssueWithoutRemarks(t *testing.T) {
	t.Parallel()

	issue := issueInStatus(models.IssueStatusPending)
	issue.AIAnalysis = &models.AIAnalysis{IsFake: true, FakeConfidence: 0.92, AnalyzedAt: time.Now()}

	err := NewMachine().Apply(issue, moderatorActor(), Request{NewStatus: models.IssueStatusRejected})

	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusRejected, issue.Status)
}

func TestMachineSubmitResolution(t *testing.T) {
	t.Parallel()

	t.Run("only the assigned officer may submit", func(t *testing.T) {
		t.Parallel()

		issue := assignedIssue(7)
		err := NewMachine().Apply(issue, officerActor(8), Request{
			NewStatus:  models.IssueStatusPendingReview,
			Resolution: &ResolutionData{ProofKey: "proofs/2026/08/x.jpg", OfficerNotes: "Fixed"},
		})
		assert.ErrorIs(t, err, ErrUnauthorizedActor)
	})

	t.Run("proof is mandatory", func(t *testing.T) {
		t.Parallel()

		issue := assignedIssue(7)
		err := NewMachine().Apply(issue, officerActor(7), Request{
			NewStatus:  models.IssueStatusPendingReview,
			Resolution: &ResolutionData{OfficerNotes: "Fixed"},
		})
		assert.ErrorIs(t, err, ErrMissingRequiredField)
	})

	t.Run("notes are mandatory", func(t *testing.T) {
		t.Parallel()

		issue := assignedIssue(7)
		err := NewMachine().Apply(issue, officerActor(7), Request{
			NewStatus:  models.IssueStatusPendingReview,
			Resolution: &ResolutionData{ProofKey: "proofs/2026/08/x.jpg"},
		})
		assert.ErrorIs(t, err, ErrMissingRequiredField)
	})

	t.Run("valid submission moves to pending review", func(t *testing.T) {
		t.Parallel()

		issue := assignedIssue(7)
		err := NewMachine().Apply(issue, officerActor(7), Request{
			NewStatus:  models.IssueStatusPendingReview,
			Resolution: &ResolutionData{ProofKey: "proofs/2026/08/x.jpg", ProofThumbKey: "proofs/2026/08/x_thumb.jpg", OfficerNotes: "Replaced the bulb"},
		})

		require.NoError(t, err)
		assert.Equal(t, models.IssueStatusPendingReview, issue.Status)
		require.NotNil(t, issue.Resolution)
		assert.Equal(t, "Replaced the bulb", issue.Resolution.OfficerNotes)
		assert.False(t, issue.Resolution.SubmittedAt.IsZero())
	})

	t.Run("resubmission supersedes the rejected proof", func(t *testing.T) {
		t.Parallel()

		issue := issueInStatus(models.IssueStatusInProgress)
		issue.Assignment = &models.Assignment{OfficerID: 7}
		issue.Resolution = &models.Resolution{
			ProofKey:     "proofs/2026/08/old.jpg",
			OfficerNotes: "First attempt",
			ModeratorApproval: &models.ModeratorApproval{
				IsApproved: false,
				Remarks:    "Photo too dark",
			},
		}

		err := NewMachine().Apply(issue, officerActor(7), Request{
			NewStatus:  models.IssueStatusPendingReview,
			Resolution: &ResolutionData{ProofKey: "proofs/2026/08/new.jpg", OfficerNotes: "Retaken in daylight"},
		})

		require.NoError(t, err)
		assert.Equal(t, "proofs/2026/08/new.jpg", issue.Resolution.ProofKey)
		assert.Nil(t, issue.Resolution.ModeratorApproval, "fresh submission starts with no verdict")
	})
}

func TestMachineReviewResolution(t *testing.T) {
	t.Parallel()

	pendingReview := func() *models.Issue {
		issue := issueInStatus(models.IssueStatusPendingReview)
		issue.Assignment = &models.Assignment{OfficerID: 7}
		issue.Resolution = &models.Resolution{ProofKey: "proofs/2026/08/x.jpg", OfficerNotes: "Done", SubmittedAt: time.Now()}
		return issue
	}

	t.Run("approval resolves", func(t *testing.T) {
		t.Parallel()

		issue := pendingReview()
		err := NewMachine().Apply(issue, moderatorActor(), Request{NewStatus: models.IssueStatusResolved})

		require.NoError(t, err)
		assert.Equal(t, models.IssueStatusResolved, issue.Status)
		require.NotNil(t, issue.Resolution.ModeratorApproval)
		assert.True(t, issue.Resolution.ModeratorApproval.IsApproved)
	})

	t.Run("rejection requires remarks", func(t *testing.T) {
		t.Parallel()

		issue := pendingReview()
		err := NewMachine().Apply(issue, moderatorActor(), Request{NewStatus: models.IssueStatusInProgress})
		assert.ErrorIs(t, err, ErrMissingRequiredField)
	})

	t.Run("rejection returns to in progress and keeps the proof", func(t *testing.T) {
		t.Parallel()

		issue := pendingReview()
		err := NewMachine().Apply(issue, moderatorActor(), Request{NewStatus: models.IssueStatusInProgress, Remarks: "Wrong location"})

		require.NoError(t, err)
		assert.Equal(t, models.IssueStatusInProgress, issue.Status)
		assert.Equal(t, "proofs/2026/08/x.jpg", issue.Resolution.ProofKey, "rejected proof stays for audit")
		require.NotNil(t, issue.Resolution.ModeratorApproval)
		assert.False(t, issue.Resolution.ModeratorApproval.IsApproved)
	})

	t.Run("officer may not review", func(t *testing.T) {
		t.Parallel()

		issue := pendingReview()
		err := NewMachine().Apply(issue, officerActor(7), Request{NewStatus: models.IssueStatusResolved})
		assert.ErrorIs(t, err, ErrUnauthorizedActor)
	})
}
