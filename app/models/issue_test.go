package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIssueDefaults(t *testing.T) {
	t.Parallel()

	issue := NewIssue("Pothole on Main Street", "Deep pothole in the right lane near the crossing.")

	assert.NotEmpty(t, issue.PublicID)
	assert.Equal(t, IssueStatusPending, issue.Status)
	assert.Equal(t, CategoryGeneral, issue.Category)
	assert.Empty(t, issue.Priority, "priority is set by triage, not at intake")

	require.Len(t, issue.Timeline, 1)
	assert.Equal(t, IssueStatusPending, issue.Timeline[0].Status)
	assert.Equal(t, "Issue reported", issue.Timeline[0].Message)
	assert.False(t, issue.Timeline[0].At.IsZero())
}

func TestNewIssuePublicIDsAreUnique(t *testing.T) {
	t.Parallel()

	a := NewIssue("First report", "Something broke on the first street.")
	b := NewIssue("Second report", "Something broke on the second street.")

	assert.NotEqual(t, a.PublicID, b.PublicID)
}

func TestIssueValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		issue   *Issue
		wantErr bool
	}{
		{
			name:  "valid issue",
			issue: NewIssue("Pothole on Main Street", "Deep pothole in the right lane."),
		},
		{
			name:    "title too short",
			issue:   NewIssue("Po", "Deep pothole in the right lane."),
			wantErr: true,
		},
		{
			name:    "missing description",
			issue:   NewIssue("Pothole on Main Street", ""),
			wantErr: true,
		},
		{
			name:    "description too short",
			issue:   NewIssue("Pothole on Main Street", "short"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.issue.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIssueIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[string]bool{
		IssueStatusPending:       false,
		IssueStatusAssigned:      false,
		IssueStatusInProgress:    false,
		IssueStatusEscalated:     false,
		IssueStatusPendingReview: false,
		IssueStatusResolved:      true,
		IssueStatusRejected:      true,
	}

	for status, want := range terminal {
		issue := &Issue{Status: status}
		assert.Equal(t, want, issue.IsTerminal(), "status %q", status)
	}
}

func TestIssueAssignmentOpen(t *testing.T) {
	t.Parallel()

	open := map[string]bool{
		IssueStatusPending:       true,
		IssueStatusAssigned:      true,
		IssueStatusInProgress:    true,
		IssueStatusEscalated:     false,
		IssueStatusPendingReview: false,
		IssueStatusResolved:      false,
		IssueStatusRejected:      false,
	}

	for status, want := range open {
		issue := &Issue{Status: status}
		assert.Equal(t, want, issue.AssignmentOpen(), "status %q", status)
	}
}

// The sub-records are stored as JSON columns, so anything the encoder drops
// is silently lost on the next read. A fully populated issue must survive the
// encode/decode cycle field for field.
func TestIssueJSONRoundTrip(t *testing.T) {
	t.Parallel()

	reported := time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC)
	assigned := reported.Add(2 * time.Hour)
	taken := reported.Add(26 * time.Hour)
	submitted := reported.Add(27 * time.Hour)
	reviewed := reported.Add(30 * time.Hour)
	acked := reported.Add(48 * time.Hour)

	reporterID := uint(42)
	original := &Issue{
		ID:            7,
		PublicID:      "2f1c9d34-8a6b-4c21-9e55-0b7d1c3a9f10",
		Title:         "Broken streetlight on 5th",
		Description:   "The light on 5th and Main has been dark for a week.",
		Status:        IssueStatusResolved,
		Priority:      PriorityHigh,
		Category:      "Electricity",
		ReporterID:    &reporterID,
		ReporterEmail: "jane@example.com",
		NotifyByEmail: true,
		Location:      "5th and Main",
		ViewCount:     13,
		UpvoteCount:   4,
		AIAnalysis: &AIAnalysis{
			Category:       "Electricity",
			Priority:       PriorityHigh,
			IsFake:         false,
			FakeConfidence: 0.08,
			Reasoning:      "Consistent location and plausible description",
			AnalyzedAt:     reported.Add(time.Hour),
		},
		Assignment: &Assignment{
			OfficerID:   7,
			OfficerName: "Owen Officer",
			AssignedAt:  assigned,
			Score:       85,
		},
		Resolution: &Resolution{
			ProofKey:      "proofs/2026/08/abc.jpg",
			ProofThumbKey: "proofs/2026/08/abc_thumb.jpg",
			ProofTakenAt:  &taken,
			OfficerNotes:  "Replaced the bulb and fuse",
			SubmittedAt:   submitted,
			ModeratorApproval: &ModeratorApproval{
				IsApproved: true,
				Remarks:    "Photo shows the repaired light",
				ReviewedBy: "Mia Moderator",
				ReviewedAt: reviewed,
			},
			Acknowledgement: &Acknowledgement{
				Status:         AckConfirmed,
				Remarks:        "Working again, thanks",
				AcknowledgedAt: acked,
			},
			Rating: &ResolutionRating{
				Stars:   5,
				Comment: "Quick turnaround",
				RatedAt: acked,
			},
		},
		Timeline: Timeline{
			{Status: IssueStatusPending, Message: "Issue reported", ByUser: "Citizen", At: reported},
			{Status: IssueStatusAssigned, Message: "Assigned to Officer Owen Officer (load: 2)", ByUser: "Mia Moderator", At: assigned},
			{Status: IssueStatusResolved, Message: "Moderator approved resolution.", ByUser: "Mia Moderator", At: reviewed},
		},
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Issue
	require.NoError(t, json.Unmarshal(encoded, &decoded))

	assert.Equal(t, original.Status, decoded.Status)
	assert.Equal(t, original.AIAnalysis, decoded.AIAnalysis)
	assert.Equal(t, original.Assignment, decoded.Assignment)
	assert.Equal(t, original.Resolution, decoded.Resolution)
	assert.Equal(t, original.Timeline, decoded.Timeline)
	assert.Equal(t, original.PublicID, decoded.PublicID)
	assert.Equal(t, original.ReporterID, decoded.ReporterID)
}

// Optional sub-records must stay absent, not decode into zero-valued structs.
func TestIssueJSONRoundTripOmitsEmptySubRecords(t *testing.T) {
	t.Parallel()

	original := NewIssue("Pothole on Main Street", "Deep pothole in the right lane.")

	encoded, err := json.Marshal(original)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "ai_analysis")
	assert.NotContains(t, string(encoded), "assignment")
	assert.NotContains(t, string(encoded), "resolution")

	var decoded Issue
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Nil(t, decoded.AIAnalysis)
	assert.Nil(t, decoded.Assignment)
	assert.Nil(t, decoded.Resolution)
	assert.Equal(t, original.Status, decoded.Status)
}

func TestIssueAppendTimeline(t *testing.T) {
	t.Parallel()

	issue := NewIssue("Pothole on Main Street", "Deep pothole in the right lane.")
	issue.AppendTimeline(IssueStatusAssigned, "Assigned to Owen Officer", "Mia Moderator")

	require.Len(t, issue.Timeline, 2)
	last := issue.Timeline[len(issue.Timeline)-1]
	assert.Equal(t, IssueStatusAssigned, last.Status)
	assert.Equal(t, "Assigned to Owen Officer", last.Message)
	assert.Equal(t, "Mia Moderator", last.ByUser)
	assert.False(t, last.At.IsZero())
}
