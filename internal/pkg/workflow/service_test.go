package workflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civixhq/civix/app/models"
)

type fakeIssueStore struct {
	issues     map[uint]*models.Issue
	candidates []models.Issue
	updateErr  error
	updates    int
	deletes    int
}

func (f *fakeIssueStore) GetByID(id uint) (*models.Issue, error) {
	issue, ok := f.issues[id]
	if !ok {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, id)
	}
	return issue, nil
}

func (f *fakeIssueStore) GetByPublicID(publicID string) (*models.Issue, error) {
	for _, issue := range f.issues {
		if issue.PublicID == publicID {
			return issue, nil
		}
	}
	return nil, fmt.Errorf("%w: issue %s", ErrNotFound, publicID)
}

func (f *fakeIssueStore) UpdateFromStatus(issue *models.Issue, expectedStatus string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	return nil
}

func (f *fakeIssueStore) ListActiveCandidates(excludeID uint, limit int) ([]models.Issue, error) {
	return f.candidates, nil
}

func (f *fakeIssueStore) Delete(id uint) error {
	if _, ok := f.issues[id]; !ok {
		return fmt.Errorf("%w: issue %d", ErrNotFound, id)
	}
	delete(f.issues, id)
	f.deletes++
	return nil
}

type fakeUserStore struct {
	users       map[uint]*models.User
	byDept      map[string][]models.User
	available   []models.User
	taskDeltas  map[uint]int
	trustDeltas map[string]int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:       map[uint]*models.User{},
		byDept:      map[string][]models.User{},
		taskDeltas:  map[uint]int{},
		trustDeltas: map[string]int{},
	}
}

func (f *fakeUserStore) GetByID(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return user, nil
}

func (f *fakeUserStore) OfficersByDepartment(department string) ([]models.User, error) {
	return f.byDept[department], nil
}

func (f *fakeUserStore) AvailableOfficers() ([]models.User, error) {
	return f.available, nil
}

func (f *fakeUserStore) AdjustActiveTasks(officerID uint, delta int) error {
	f.taskDeltas[officerID] += delta
	return nil
}

func (f *fakeUserStore) AdjustTrustScore(email string, delta int) error {
	f.trustDeltas[email] += delta
	return nil
}

type fakeClassifier struct {
	analysis *models.AIAnalysis
	err      error
}

func (f *fakeClassifier) Analyze(ctx context.Context, title, description string) (*models.AIAnalysis, error) {
	return f.analysis, f.err
}

type fakeDetector struct {
	matches []DuplicateMatch
	err     error
}

func (f *fakeDetector) FindDuplicates(ctx context.Context, candidate DuplicateCandidate, existing []DuplicateCandidate) ([]DuplicateMatch, error) {
	return f.matches, f.err
}

type fakeNotifier struct {
	assigned      int
	statusChanges []string
}

func (f *fakeNotifier) IssueAssigned(issue *models.Issue, officer *models.User) {
	f.assigned++
}

func (f *fakeNotifier) IssueStatusChanged(issue *models.Issue, previous, remarks string) {
	f.statusChanges = append(f.statusChanges, issue.Status)
}

type serviceFixture struct {
	svc        *Service
	issues     *fakeIssueStore
	users      *fakeUserStore
	classifier *fakeClassifier
	detector   *fakeDetector
	notifier   *fakeNotifier
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		issues:     &fakeIssueStore{issues: map[uint]*models.Issue{}},
		users:      newFakeUserStore(),
		classifier: &fakeClassifier{},
		detector:   &fakeDetector{},
		notifier:   &fakeNotifier{},
	}
	f.svc = NewService(f.issues, f.users, f.classifier, f.detector, f.notifier)
	return f
}

func (f *serviceFixture) addIssue(id uint, status string) *models.Issue {
	issue := issueInStatus(status)
	issue.ID = id
	issue.ReporterEmail = "jane@example.com"
	f.issues.issues[id] = issue
	return issue
}

func (f *serviceFixture) addOfficer(id uint) *models.User {
	officer := testOfficer(id)
	f.users.users[id] = officer
	return officer
}

func TestServiceAssign(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.addIssue(1, models.IssueStatusPending)
	f.addOfficer(7)

	issue, err := f.svc.Assign(1, moderatorActor(), 7, 85, false)

	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusAssigned, issue.Status)
	assert.Equal(t, 1, f.issues.updates)
	assert.Equal(t, 1, f.users.taskDeltas[7], "officer load bumped after commit")
	assert.Equal(t, 1, f.notifier.assigned)
}

func TestServiceAssignUnknownOfficer(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.addIssue(1, models.IssueStatusPending)

	_, err := f.svc.Assign(1, moderatorActor(), 99, 0, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceTransitionConcurrentModification(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	f.addIssue(1, models.IssueStatusPending)
	f.addOfficer(7)
	f.issues.updateErr = fmt.Errorf("%w: issue 1 moved out of %q", ErrConcurrentModification, models.IssueStatusPending)

	_, err := f.svc.Assign(1, moderatorActor(), 7, 85, false)

	assert.ErrorIs(t, err, ErrConcurrentModification)
	assert.Zero(t, f.users.taskDeltas[7], "no side effects on a failed commit")
	assert.Zero(t, f.notifier.assigned)
}

func TestServiceReviewResolutionTrustAndLoad(t *testing.T) {
	t.Parallel()

	pendingReview := func(f *serviceFixture) *models.Issue {
		issue := f.addIssue(1, models.IssueStatusPendingReview)
		issue.Assignment = &models.Assignment{OfficerID: 7}
		issue.Resolution = &models.Resolution{ProofKey: "proofs/x.jpg", OfficerNotes: "Done", SubmittedAt: time.Now()}
		return issue
	}

	t.Run("approval releases the officer and rewards the reporter", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		pendingReview(f)

		issue, err := f.svc.ReviewResolution(1, moderatorActor(), true, "Good work")

		require.NoError(t, err)
		assert.Equal(t, models.IssueStatusResolved, issue.Status)
		assert.Equal(t, -1, f.users.taskDeltas[7])
		assert.Equal(t, 5, f.users.trustDeltas["jane@example.com"])
		assert.Equal(t, []string{models.IssueStatusResolved}, f.notifier.statusChanges)
	})

	t.Run("rejection still credits the reporter for a real issue", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		pendingReview(f)

		issue, err := f.svc.ReviewResolution(1, moderatorActor(), false, "Photo does not show the site")

		require.NoError(t, err)
		assert.Equal(t, models.IssueStatusInProgress, issue.Status)
		assert.Zero(t, f.users.taskDeltas[7], "officer keeps the task")
		assert.Equal(t, 2, f.users.trustDeltas["jane@example.com"])
	})
}

func TestServiceRejectPenalizesReporter(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	issue := f.addIssue(1, models.IssueStatusPending)
	issue.AIAnalysis = &models.AIAnalysis{IsFake: true, FakeConfidence: 0.95}

	_, err := f.svc.Transition(1, moderatorActor(), Request{NewStatus: models.IssueStatusRejected})

	require.NoError(t, err)
	assert.Equal(t, -5, f.users.trustDeltas["jane@example.com"])
}

func TestServiceAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("requires a moderator", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		f.addIssue(1, models.IssueStatusPending)

		_, err := f.svc.Analyze(context.Background(), 1, officerActor(7))
		assert.ErrorIs(t, err, ErrUnauthorizedActor)
	})

	t.Run("terminal issues are closed to analysis", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		f.addIssue(1, models.IssueStatusResolved)

		_, err := f.svc.Analyze(context.Background(), 1, moderatorActor())
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("classifier failure is surfaced, never defaulted", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := f.addIssue(1, models.IssueStatusPending)
		f.classifier.err = fmt.Errorf("%w: connection refused", ErrClassifierUnavailable)

		_, err := f.svc.Analyze(context.Background(), 1, moderatorActor())

		assert.ErrorIs(t, err, ErrClassifierUnavailable)
		assert.Nil(t, issue.AIAnalysis)
	})

	t.Run("verdict is stored and backfills category and priority", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := f.addIssue(1, models.IssueStatusPending)
		f.classifier.analysis = &models.AIAnalysis{
			Category:   "Roads",
			Priority:   models.PriorityHigh,
			IsFake:     false,
			AnalyzedAt: time.Now(),
		}

		analysis, err := f.svc.Analyze(context.Background(), 1, moderatorActor())

		require.NoError(t, err)
		assert.Same(t, issue.AIAnalysis, analysis)
		assert.Equal(t, "Roads", issue.Category)
		assert.Equal(t, models.PriorityHigh, issue.Priority)
		assert.Equal(t, models.IssueStatusPending, issue.Status, "analysis never moves status")
	})

	t.Run("existing priority is not overwritten", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := f.addIssue(1, models.IssueStatusPending)
		issue.Priority = models.PriorityLow
		f.classifier.analysis = &models.AIAnalysis{Priority: models.PriorityHigh}

		_, err := f.svc.Analyze(context.Background(), 1, moderatorActor())

		require.NoError(t, err)
		assert.Equal(t, models.PriorityLow, issue.Priority)
	})
}

func TestServiceFindDuplicates(t *testing.T) {
	t.Parallel()

	t.Run("backend failure is unknown, not zero matches", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		f.addIssue(1, models.IssueStatusPending)
		f.detector.err = fmt.Errorf("%w: timeout", ErrDetectionUnavailable)

		result, err := f.svc.FindDuplicates(context.Background(), 1, moderatorActor())

		assert.ErrorIs(t, err, ErrDetectionUnavailable)
		assert.Nil(t, result)
	})

	t.Run("matches are ranked and strong ones flagged", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		f.addIssue(1, models.IssueStatusPending)
		f.detector.matches = []DuplicateMatch{
			{IssueID: "a", Score: 0.40},
			{IssueID: "b", Score: 0.91},
			{IssueID: "c", Score: 0.85},
		}

		result, err := f.svc.FindDuplicates(context.Background(), 1, moderatorActor())

		require.NoError(t, err)
		assert.Equal(t, 3, result.Count)
		assert.Equal(t, "b", result.Matches[0].IssueID)
		assert.True(t, result.Matches[0].Strong)
		assert.False(t, result.Matches[1].Strong, "exactly at threshold is not strong")
		assert.False(t, result.Matches[2].Strong)
	})

	t.Run("requires a moderator", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		f.addIssue(1, models.IssueStatusPending)

		_, err := f.svc.FindDuplicates(context.Background(), 1, officerActor(7))
		assert.ErrorIs(t, err, ErrUnauthorizedActor)
	})
}

func TestServiceSuggestOfficers(t *testing.T) {
	t.Parallel()

	t.Run("department pool is used when present", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := f.addIssue(1, models.IssueStatusPending)
		issue.Category = "Roads"
		f.users.byDept["Roads"] = []models.User{
			{ID: 1, Name: "Busy", Role: models.ROLE_OFFICER, Department: "Roads", ActiveTasks: 4, TrustScore: 100},
			{ID: 2, Name: "Idle", Role: models.ROLE_OFFICER, Department: "Roads", ActiveTasks: 0, TrustScore: 100},
		}

		suggestions, err := f.svc.SuggestOfficers(1, moderatorActor())

		require.NoError(t, err)
		require.Len(t, suggestions, 2)
		assert.Equal(t, uint(2), suggestions[0].OfficerID)
		assert.True(t, suggestions[0].Recommended)
		assert.NotEqual(t, "Cross-department backup", suggestions[0].Reason)
	})

	t.Run("empty department falls back to the whole pool", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := f.addIssue(1, models.IssueStatusPending)
		issue.Category = "Parks"
		f.users.available = []models.User{
			{ID: 3, Name: "Backup", Role: models.ROLE_OFFICER, Department: "Roads", TrustScore: 100},
		}

		suggestions, err := f.svc.SuggestOfficers(1, moderatorActor())

		require.NoError(t, err)
		require.Len(t, suggestions, 1)
		assert.Equal(t, "Cross-department backup", suggestions[0].Reason)
	})
}

func TestServiceAcknowledge(t *testing.T) {
	t.Parallel()

	resolvedIssue := func(f *serviceFixture) *models.Issue {
		issue := f.addIssue(1, models.IssueStatusResolved)
		reporterID := uint(42)
		issue.ReporterID = &reporterID
		issue.Resolution = &models.Resolution{ProofKey: "proofs/x.jpg", OfficerNotes: "Done", SubmittedAt: time.Now()}
		return issue
	}
	reporter := Actor{UserID: 42, Name: "Jane", Role: models.ROLE_USER}

	t.Run("reporter confirms once", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		resolvedIssue(f)

		issue, err := f.svc.Acknowledge(1, reporter, models.AckConfirmed, "All good")
		require.NoError(t, err)
		require.NotNil(t, issue.Resolution.Acknowledgement)
		assert.Equal(t, models.AckConfirmed, issue.Resolution.Acknowledgement.Status)
		assert.Equal(t, models.IssueStatusResolved, issue.Status, "acknowledgement never moves status")

		_, err = f.svc.Acknowledge(1, reporter, models.AckDisputed, "Changed my mind")
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("token-verified email counts as the reporter", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := resolvedIssue(f)
		issue.ReporterID = nil

		_, err := f.svc.Acknowledge(1, Actor{Name: "Reporter", Email: "jane@example.com"}, models.AckDisputed, "Still broken")
		require.NoError(t, err)
		assert.Equal(t, models.AckDisputed, issue.Resolution.Acknowledgement.Status)
	})

	t.Run("strangers may not acknowledge", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		resolvedIssue(f)

		_, err := f.svc.Acknowledge(1, Actor{UserID: 99, Email: "other@example.com"}, models.AckConfirmed, "")
		assert.ErrorIs(t, err, ErrUnauthorizedActor)
	})

	t.Run("only resolved issues", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := f.addIssue(1, models.IssueStatusPendingReview)
		reporterID := uint(42)
		issue.ReporterID = &reporterID

		_, err := f.svc.Acknowledge(1, reporter, models.AckConfirmed, "")
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		resolvedIssue(f)

		_, err := f.svc.Acknowledge(1, reporter, "Maybe", "")
		assert.ErrorIs(t, err, ErrMissingRequiredField)
	})
}

func TestServiceRateResolution(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	issue := f.addIssue(1, models.IssueStatusResolved)
	reporterID := uint(42)
	issue.ReporterID = &reporterID
	issue.Resolution = &models.Resolution{ProofKey: "proofs/x.jpg", SubmittedAt: time.Now()}
	reporter := Actor{UserID: 42, Name: "Jane", Role: models.ROLE_USER}

	_, err := f.svc.RateResolution(1, reporter, 0, "")
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	_, err = f.svc.RateResolution(1, reporter, 6, "")
	assert.ErrorIs(t, err, ErrMissingRequiredField)

	rated, err := f.svc.RateResolution(1, reporter, 4, "Quick turnaround")
	require.NoError(t, err)
	require.NotNil(t, rated.Resolution.Rating)
	assert.Equal(t, 4, rated.Resolution.Rating.Stars)

	_, err = f.svc.RateResolution(1, reporter, 5, "Second thoughts")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestServiceDeleteIssue(t *testing.T) {
	t.Parallel()

	t.Run("admin delete commits a final audit entry first", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		issue := f.addIssue(1, models.IssueStatusRejected)
		before := len(issue.Timeline)

		err := f.svc.DeleteIssue(1, adminActor())

		require.NoError(t, err)
		assert.Equal(t, 1, f.issues.updates, "audit entry is persisted before the delete")
		assert.Equal(t, 1, f.issues.deletes)
		require.Len(t, issue.Timeline, before+1)
		last := issue.Timeline[len(issue.Timeline)-1]
		assert.Equal(t, "Issue removed by administrator", last.Message)
		assert.Equal(t, adminActor().Name, last.ByUser)
	})

	t.Run("moderators may not delete", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		f.addIssue(1, models.IssueStatusPending)

		err := f.svc.DeleteIssue(1, moderatorActor())

		assert.ErrorIs(t, err, ErrUnauthorizedActor)
		assert.Zero(t, f.issues.deletes)
	})

	t.Run("a failed audit commit blocks the delete", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		f.addIssue(1, models.IssueStatusPending)
		f.issues.updateErr = fmt.Errorf("%w: issue 1 moved", ErrConcurrentModification)

		err := f.svc.DeleteIssue(1, adminActor())

		assert.ErrorIs(t, err, ErrConcurrentModification)
		assert.Zero(t, f.issues.deletes)
	})

	t.Run("unknown issue", func(t *testing.T) {
		t.Parallel()

		f := newServiceFixture()
		err := f.svc.DeleteIssue(404, adminActor())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceTransitionUnknownIssue(t *testing.T) {
	t.Parallel()

	f := newServiceFixture()
	_, err := f.svc.Transition(404, moderatorActor(), Request{NewStatus: models.IssueStatusRejected})
	assert.ErrorIs(t, err, ErrNotFound)
}
