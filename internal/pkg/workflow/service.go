package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/internal/pkg/assignment"
)

// StrongMatchThreshold is the presentation band above which a duplicate
// candidate is surfaced as a strong match. It is not part of the detector
// contract; moderators rely on it when deciding to reject true duplicates.
const StrongMatchThreshold = 0.85

// Trust-score deltas applied to the reporter on review outcomes.
const (
	trustDeltaResolved     = 5
	trustDeltaReviewReject = 2
	trustDeltaRejected     = -5
)

// IssueStore is the persistence surface the service needs. UpdateFromStatus
// must commit conditionally on the status the record had when it was read
// and return ErrConcurrentModification when that check fails.
type IssueStore interface {
	GetByID(id uint) (*models.Issue, error)
	GetByPublicID(publicID string) (*models.Issue, error)
	UpdateFromStatus(issue *models.Issue, expectedStatus string) error
	ListActiveCandidates(excludeID uint, limit int) ([]models.Issue, error)
	Delete(id uint) error
}

// UserStore resolves actors and the officer pool.
type UserStore interface {
	GetByID(id uint) (*models.User, error)
	OfficersByDepartment(department string) ([]models.User, error)
	AvailableOfficers() ([]models.User, error)
	AdjustActiveTasks(officerID uint, delta int) error
	AdjustTrustScore(email string, delta int) error
}

// Classifier is the external AI triage capability. Implementations must
// return ErrClassifierUnavailable (wrapped) on failure or timeout, never a
// default verdict.
type Classifier interface {
	Analyze(ctx context.Context, title, description string) (*models.AIAnalysis, error)
}

// DuplicateCandidate is the projection of an issue sent to the detector.
type DuplicateCandidate struct {
	ID          uint   `json:"id"`
	PublicID    string `json:"public_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// DuplicateMatch is one ranked similarity hit.
type DuplicateMatch struct {
	IssueID string  `json:"issue_id"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
	Strong  bool    `json:"strong"`
}

// DuplicateResult distinguishes "0 found" from a failed check: a failed
// check never produces a result at all, only ErrDetectionUnavailable.
type DuplicateResult struct {
	Count   int              `json:"count"`
	Matches []DuplicateMatch `json:"matches"`
}

// Detector is the external similarity capability over existing issues.
type Detector interface {
	FindDuplicates(ctx context.Context, candidate DuplicateCandidate, existing []DuplicateCandidate) ([]DuplicateMatch, error)
}

// Notifier dispatches workflow events to interested parties. Implementations
// are best-effort; a notification failure never fails a transition.
type Notifier interface {
	IssueAssigned(issue *models.Issue, officer *models.User)
	IssueStatusChanged(issue *models.Issue, previous, remarks string)
}

// Service executes workflow operations: it owns the read → guard → guarded
// write cycle for transitions and orchestrates the advisory AI calls that
// never touch status.
type Service struct {
	machine    *Machine
	issues     IssueStore
	users      UserStore
	classifier Classifier
	detector   Detector
	notifier   Notifier
	scorer     *assignment.Scorer
}

func NewService(issues IssueStore, users UserStore, classifier Classifier, detector Detector, notifier Notifier) *Service {
	return &Service{
		machine:    NewMachine(),
		issues:     issues,
		users:      users,
		classifier: classifier,
		detector:   detector,
		notifier:   notifier,
		scorer:     assignment.NewScorer(assignment.DefaultWeights()),
	}
}

// Transition loads the issue, applies the requested edge and commits it
// conditioned on the status as read. The returned issue is the authoritative
// record the client should replace its local state with.
func (s *Service) Transition(issueID uint, actor Actor, req Request) (*models.Issue, error) {
	issue, err := s.issues.GetByID(issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}

	previous := issue.Status
	if err := s.machine.Apply(issue, actor, req); err != nil {
		return nil, err
	}

	if err := s.issues.UpdateFromStatus(issue, previous); err != nil {
		return nil, err
	}

	s.afterTransition(issue, previous, actor, req)
	return issue, nil
}

// Assign resolves the officer and runs the Pending → Assigned edge.
func (s *Service) Assign(issueID uint, actor Actor, officerID uint, score int, manual bool) (*models.Issue, error) {
	officer, err := s.users.GetByID(officerID)
	if err != nil {
		return nil, fmt.Errorf("%w: officer %d", ErrNotFound, officerID)
	}

	return s.Transition(issueID, actor, Request{
		NewStatus: models.IssueStatusAssigned,
		Assign:    &AssignData{Officer: officer, Score: score, Manual: manual},
	})
}

// SubmitResolution runs the officer's close-out edge into Pending Review.
func (s *Service) SubmitResolution(issueID uint, actor Actor, res ResolutionData) (*models.Issue, error) {
	return s.Transition(issueID, actor, Request{
		NewStatus:  models.IssueStatusPendingReview,
		Resolution: &res,
	})
}

// ReviewResolution approves (→ Resolved) or rejects (→ In Progress, remarks
// mandatory) a pending resolution. A second review of the same submission
// fails the state guard, preserving the first verdict.
func (s *Service) ReviewResolution(issueID uint, actor Actor, approved bool, remarks string) (*models.Issue, error) {
	target := models.IssueStatusResolved
	if !approved {
		target = models.IssueStatusInProgress
	}
	return s.Transition(issueID, actor, Request{NewStatus: target, Remarks: remarks})
}

// Analyze runs the classifier over the issue text and replaces the analysis
// sub-record atomically. Status never changes: analysis is the Pending →
// Pending self-transition and stays advisory on every other live state.
func (s *Service) Analyze(ctx context.Context, issueID uint, actor Actor) (*models.AIAnalysis, error) {
	if !roleAllowed(models.ROLE_MODERATOR, actor.Role) {
		return nil, fmt.Errorf("%w: analysis requires a moderator", ErrUnauthorizedActor)
	}

	issue, err := s.issues.GetByID(issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}
	if issue.IsTerminal() {
		return nil, fmt.Errorf("%w: %q issues are closed to analysis", ErrInvalidStateTransition, issue.Status)
	}

	analysis, err := s.classifier.Analyze(ctx, issue.Title, issue.Description)
	if err != nil {
		return nil, err
	}

	previous := issue.Status
	issue.AIAnalysis = analysis
	if analysis.Category != "" {
		issue.Category = analysis.Category
	}
	if analysis.Priority != "" && issue.Priority == "" {
		issue.Priority = analysis.Priority
	}

	if err := s.issues.UpdateFromStatus(issue, previous); err != nil {
		return nil, err
	}
	return analysis, nil
}

// FindDuplicates queries the similarity backend against a snapshot of active
// issues. A backend failure is unknown, not "no duplicates".
func (s *Service) FindDuplicates(ctx context.Context, issueID uint, actor Actor) (*DuplicateResult, error) {
	if !roleAllowed(models.ROLE_MODERATOR, actor.Role) {
		return nil, fmt.Errorf("%w: duplicate check requires a moderator", ErrUnauthorizedActor)
	}

	issue, err := s.issues.GetByID(issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}

	pool, err := s.issues.ListActiveCandidates(issue.ID, 100)
	if err != nil {
		return nil, err
	}

	existing := make([]DuplicateCandidate, 0, len(pool))
	for _, p := range pool {
		existing = append(existing, DuplicateCandidate{
			ID:          p.ID,
			PublicID:    p.PublicID,
			Title:       p.Title,
			Description: p.Description,
		})
	}

	matches, err := s.detector.FindDuplicates(ctx, DuplicateCandidate{
		ID:          issue.ID,
		PublicID:    issue.PublicID,
		Title:       issue.Title,
		Description: issue.Description,
	}, existing)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	for i := range matches {
		matches[i].Strong = matches[i].Score > StrongMatchThreshold
	}

	return &DuplicateResult{Count: len(matches), Matches: matches}, nil
}

// SuggestOfficers ranks the officer pool for the issue's department. Pure
// read: the actual assignment happens only through Assign.
func (s *Service) SuggestOfficers(issueID uint, actor Actor) ([]assignment.Suggestion, error) {
	if !roleAllowed(models.ROLE_MODERATOR, actor.Role) {
		return nil, fmt.Errorf("%w: suggestions require a moderator", ErrUnauthorizedActor)
	}

	issue, err := s.issues.GetByID(issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}

	department := issue.Category
	if department == "" {
		department = models.CategoryGeneral
	}

	pool, err := s.users.OfficersByDepartment(department)
	if err != nil {
		return nil, err
	}

	crossDepartment := false
	if len(pool) == 0 {
		// Never return an empty list just because a department has no
		// officers; fall back to the whole available pool.
		pool, err = s.users.AvailableOfficers()
		if err != nil {
			return nil, err
		}
		crossDepartment = true
	}

	return s.scorer.Rank(pool, crossDepartment), nil
}

// Acknowledge records the reporter's confirm/dispute verdict on a resolved
// issue. Additive metadata: status is never changed by acknowledgement.
func (s *Service) Acknowledge(issueID uint, actor Actor, status, remarks string) (*models.Issue, error) {
	if status != models.AckConfirmed && status != models.AckDisputed {
		return nil, fmt.Errorf("%w: acknowledgement status", ErrMissingRequiredField)
	}

	issue, err := s.issues.GetByID(issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}
	if err := s.reporterOnly(issue, actor); err != nil {
		return nil, err
	}
	if issue.Status != models.IssueStatusResolved || issue.Resolution == nil {
		return nil, fmt.Errorf("%w: only resolved issues can be acknowledged", ErrInvalidStateTransition)
	}
	if issue.Resolution.Acknowledgement != nil {
		return nil, fmt.Errorf("%w: resolution already acknowledged", ErrInvalidStateTransition)
	}

	previous := issue.Status
	issue.Resolution.Acknowledgement = &models.Acknowledgement{
		Status:         status,
		Remarks:        remarks,
		AcknowledgedAt: time.Now(),
	}
	issue.AppendTimeline(issue.Status, fmt.Sprintf("Reporter %s the resolution", ackVerb(status)), actor.Name)

	if err := s.issues.UpdateFromStatus(issue, previous); err != nil {
		return nil, err
	}
	return issue, nil
}

// RateResolution records the reporter's one-time officer rating (1-5 stars)
// on a resolved issue.
func (s *Service) RateResolution(issueID uint, actor Actor, stars int, comment string) (*models.Issue, error) {
	if stars < 1 || stars > 5 {
		return nil, fmt.Errorf("%w: rating must be 1-5 stars", ErrMissingRequiredField)
	}

	issue, err := s.issues.GetByID(issueID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}
	if err := s.reporterOnly(issue, actor); err != nil {
		return nil, err
	}
	if issue.Status != models.IssueStatusResolved || issue.Resolution == nil {
		return nil, fmt.Errorf("%w: only resolved issues can be rated", ErrInvalidStateTransition)
	}
	if issue.Resolution.Rating != nil {
		return nil, fmt.Errorf("%w: resolution already rated", ErrInvalidStateTransition)
	}

	previous := issue.Status
	issue.Resolution.Rating = &models.ResolutionRating{
		Stars:   stars,
		Comment: comment,
		RatedAt: time.Now(),
	}

	if err := s.issues.UpdateFromStatus(issue, previous); err != nil {
		return nil, err
	}
	return issue, nil
}

// DeleteIssue is the administrative takedown. It bypasses the transition
// table but not the audit trail: a final timeline entry is committed before
// the soft delete so the record's history survives in the deleted row.
func (s *Service) DeleteIssue(issueID uint, actor Actor) error {
	if actor.Role != models.ROLE_ADMIN {
		return fmt.Errorf("%w: deletion requires an admin", ErrUnauthorizedActor)
	}

	issue, err := s.issues.GetByID(issueID)
	if err != nil {
		return fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}

	previous := issue.Status
	issue.AppendTimeline(issue.Status, "Issue removed by administrator", actor.Name)
	if err := s.issues.UpdateFromStatus(issue, previous); err != nil {
		return err
	}

	return s.issues.Delete(issue.ID)
}

func (s *Service) reporterOnly(issue *models.Issue, actor Actor) error {
	if issue.ReporterID != nil && actor.UserID != 0 && *issue.ReporterID == actor.UserID {
		return nil
	}
	// Account-less reporters prove their identity through the signed email
	// token, which carries the reporting address.
	if issue.ReporterEmail != "" && actor.Email != "" && issue.ReporterEmail == actor.Email {
		return nil
	}
	return fmt.Errorf("%w: only the reporter may do this", ErrUnauthorizedActor)
}

func ackVerb(status string) string {
	if status == models.AckConfirmed {
		return "confirmed"
	}
	return "disputed"
}

// afterTransition applies committed-transition side effects: officer load,
// reporter trust score, notifications. All best-effort; the transition
// itself has already been persisted.
func (s *Service) afterTransition(issue *models.Issue, previous string, actor Actor, req Request) {
	switch issue.Status {
	case models.IssueStatusAssigned:
		if issue.Assignment != nil {
			if err := s.users.AdjustActiveTasks(issue.Assignment.OfficerID, 1); err != nil {
				log.Warnf("failed to bump active tasks for officer %d: %v", issue.Assignment.OfficerID, err)
			}
			if s.notifier != nil && req.Assign != nil {
				s.notifier.IssueAssigned(issue, req.Assign.Officer)
			}
		}
		return
	case models.IssueStatusResolved:
		if issue.Assignment != nil {
			if err := s.users.AdjustActiveTasks(issue.Assignment.OfficerID, -1); err != nil {
				log.Warnf("failed to release active task for officer %d: %v", issue.Assignment.OfficerID, err)
			}
		}
		s.adjustReporterTrust(issue, trustDeltaResolved)
	case models.IssueStatusInProgress:
		if previous == models.IssueStatusPendingReview {
			s.adjustReporterTrust(issue, trustDeltaReviewReject)
		}
	case models.IssueStatusRejected:
		s.adjustReporterTrust(issue, trustDeltaRejected)
	}

	if s.notifier != nil {
		s.notifier.IssueStatusChanged(issue, previous, req.Remarks)
	}
}

func (s *Service) adjustReporterTrust(issue *models.Issue, delta int) {
	if issue.ReporterEmail == "" {
		return
	}
	if err := s.users.AdjustTrustScore(issue.ReporterEmail, delta); err != nil {
		log.Warnf("failed to adjust trust score for %s: %v", issue.ReporterEmail, err)
	}
}
