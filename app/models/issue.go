package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Issue lifecycle states. The workflow state machine is the only writer of
// Issue.Status; everything else treats these as read-only labels.
const (
	IssueStatusPending       = "Pending"
	IssueStatusAssigned      = "Assigned"
	IssueStatusInProgress    = "In Progress"
	IssueStatusEscalated     = "Escalated"
	IssueStatusPendingReview = "Pending Review"
	IssueStatusResolved      = "Resolved"
	IssueStatusRejected      = "Rejected"
)

const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

const CategoryGeneral = "General"

// AIAnalysis is the classifier's verdict for one analysis run. It is written
// as a whole or not at all; re-analysis replaces the previous record.
type AIAnalysis struct {
	Category       string    `json:"category"`
	Priority       string    `json:"priority"`
	IsFake         bool      `json:"is_fake"`
	FakeConfidence float64   `json:"fake_confidence"`
	Reasoning      string    `json:"reasoning"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// Assignment records which officer currently owns the issue.
type Assignment struct {
	OfficerID   uint      `json:"officer_id"`
	OfficerName string    `json:"officer_name"`
	AssignedAt  time.Time `json:"assigned_at"`
	Score       int       `json:"score"`
}

// ModeratorApproval is the moderator's review verdict on a submitted resolution.
type ModeratorApproval struct {
	IsApproved bool      `json:"is_approved"`
	Remarks    string    `json:"remarks"`
	ReviewedBy string    `json:"reviewed_by"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Acknowledgement statuses a reporter can record on a resolved issue.
// Metadata only, never a state-machine input.
const (
	AckConfirmed = "Confirmed"
	AckDisputed  = "Disputed"
)

type Acknowledgement struct {
	Status         string    `json:"status"`
	Remarks        string    `json:"remarks"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// ResolutionRating is the reporter's one-time rating of the handling officer.
type ResolutionRating struct {
	Stars   int       `json:"stars"`
	Comment string    `json:"comment"`
	RatedAt time.Time `json:"rated_at"`
}

// Resolution is the officer's close-out proof plus the follow-on review data.
// ProofKey/OfficerNotes survive a moderator rejection for audit and are
// superseded on the next submission.
type Resolution struct {
	ProofKey          string             `json:"proof_key"`
	ProofThumbKey     string             `json:"proof_thumb_key,omitempty"`
	ProofTakenAt      *time.Time         `json:"proof_taken_at,omitempty"`
	OfficerNotes      string             `json:"officer_notes"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	ModeratorApproval *ModeratorApproval `json:"moderator_approval,omitempty"`
	Acknowledgement   *Acknowledgement   `json:"acknowledgement,omitempty"`
	Rating            *ResolutionRating  `json:"rating,omitempty"`
}

// TimelineEntry is one audit-trail line; appended on every transition.
type TimelineEntry struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	ByUser  string    `json:"by_user"`
	At      time.Time `json:"at"`
}

type Timeline []TimelineEntry

// Issue is a citizen-submitted civic problem report tracked through its
// lifecycle. Sub-records are stored as JSON columns so a transition commits
// as a single row update.
type Issue struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	PublicID      string         `gorm:"uniqueIndex;type:varchar(36)" json:"public_id"`
	Title         string         `gorm:"type:varchar(200);not null" json:"title" validate:"required,min=3,max=200"`
	Description   string         `gorm:"type:text" json:"description" validate:"required,min=10"`
	Status        string         `gorm:"type:varchar(20);default:'Pending';index" json:"status"`
	Priority      string         `gorm:"type:varchar(10)" json:"priority"`
	Category      string         `gorm:"type:varchar(50);default:'General';index" json:"category"`
	ReporterID    *uint          `gorm:"index" json:"reporter_id,omitempty"`
	Reporter      *User          `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	ReporterEmail string         `gorm:"type:varchar(200);index" json:"reporter_email,omitempty"`
	NotifyByEmail bool           `gorm:"default:false" json:"notify_by_email"`
	IsPrivate     bool           `gorm:"default:false" json:"is_private"`
	PhotoKey      string         `gorm:"type:varchar(255)" json:"photo_key,omitempty"`
	Location      string         `gorm:"type:varchar(255)" json:"location,omitempty"`
	ViewCount     int            `gorm:"default:0" json:"view_count"`
	UpvoteCount   int            `gorm:"default:0" json:"upvote_count"`
	AIAnalysis    *AIAnalysis    `gorm:"serializer:json;type:json" json:"ai_analysis,omitempty"`
	Assignment    *Assignment    `gorm:"serializer:json;type:json" json:"assignment,omitempty"`
	Resolution    *Resolution    `gorm:"serializer:json;type:json" json:"resolution,omitempty"`
	Timeline      Timeline       `gorm:"serializer:json;type:json" json:"timeline"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (i *Issue) Validate() error {
	v := validator.New()

	return v.Struct(i)
}

// NewIssue builds an unsaved issue in the initial Pending state with the
// opening timeline entry.
func NewIssue(title, description string) *Issue {
	return &Issue{
		PublicID:    uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      IssueStatusPending,
		Category:    CategoryGeneral,
		Timeline: Timeline{{
			Status:  IssueStatusPending,
			Message: "Issue reported",
			ByUser:  "Citizen",
			At:      time.Now(),
		}},
	}
}

// IsTerminal reports whether normal workflow transitions out of the current
// status are forbidden.
func (i *Issue) IsTerminal() bool {
	return i.Status == IssueStatusResolved || i.Status == IssueStatusRejected
}

// AppendTimeline adds an audit-trail entry for the given status change.
func (i *Issue) AppendTimeline(status, message, byUser string) {
	i.Timeline = append(i.Timeline, TimelineEntry{
		Status:  status,
		Message: message,
		ByUser:  byUser,
		At:      time.Now(),
	})
}

// AssignmentOpen reports whether the issue may still (re)receive an assignment.
func (i *Issue) AssignmentOpen() bool {
	switch i.Status {
	case IssueStatusPending, IssueStatusAssigned, IssueStatusInProgress:
		return true
	}
	return false
}

// FindIssueByPublicID loads an issue by its stable external reference.
func FindIssueByPublicID(db *gorm.DB, publicID string) (*Issue, error) {
	var issue Issue
	if err := db.Where("public_id = ?", publicID).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}
