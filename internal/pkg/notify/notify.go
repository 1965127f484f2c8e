// Package notify fans workflow events out to the people who care about
// them: in-app notifications for officers and account-holding reporters,
// email for reporters who opted in. Delivery is best effort; a failed
// notification never rolls back the transition that triggered it.
package notify

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/app/repository"
	"github.com/civixhq/civix/internal/pkg/constants"
	"github.com/civixhq/civix/internal/pkg/env"
	"github.com/civixhq/civix/internal/pkg/jobqueue"
	"github.com/civixhq/civix/internal/pkg/security"
)

// AckTokenTTL is how long the emailed confirm/dispute link stays valid.
const AckTokenTTL = 7 * 24 * time.Hour

// Dispatcher implements the workflow notifier against the notification
// repository. Emails go through the job queue so SMTP hiccups never block
// a request.
type Dispatcher struct {
	users         repository.UserRepository
	notifications repository.NotificationRepository
	enqueueEmail  func(to, subject, body, issuePublicID string) error
}

func NewDispatcher(users repository.UserRepository, notifications repository.NotificationRepository) *Dispatcher {
	return &Dispatcher{
		users:         users,
		notifications: notifications,
		enqueueEmail:  enqueueEmailJob,
	}
}

func enqueueEmailJob(to, subject, body, issuePublicID string) error {
	payload := jobqueue.EmailDeliveryJobPayload{
		To:            to,
		Subject:       subject,
		Body:          body,
		IssuePublicID: issuePublicID,
	}
	_, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeEmailDelivery, payload.ToMap())
	return err
}

// IssueAssigned tells the officer about their new task.
func (d *Dispatcher) IssueAssigned(issue *models.Issue, officer *models.User) {
	n := &models.Notification{
		UserID:      officer.ID,
		Type:        models.NotificationInfo,
		Title:       "New assignment",
		Content:     fmt.Sprintf("Issue %q has been assigned to you.", issue.Title),
		ReferenceID: issue.PublicID,
	}
	if err := d.notifications.Create(n); err != nil {
		log.Warnf("[Notify] failed to store assignment notification for officer %d: %v", officer.ID, err)
	}
}

// IssueStatusChanged tells the reporter their issue moved. Reporters with an
// account get an in-app notification; reporters who opted into email get one
// of those too.
func (d *Dispatcher) IssueStatusChanged(issue *models.Issue, previous, remarks string) {
	title := fmt.Sprintf("Issue update: %s", issue.Status)
	content := fmt.Sprintf("Your issue %q moved from %s to %s.", issue.Title, previous, issue.Status)
	if remarks != "" {
		content += " Remarks: " + remarks
	}

	nType := models.NotificationInfo
	switch issue.Status {
	case models.IssueStatusResolved:
		nType = models.NotificationSuccess
	case models.IssueStatusRejected:
		nType = models.NotificationWarning
	}

	if issue.ReporterEmail == "" {
		return
	}

	if reporter, err := d.users.GetByEmail(issue.ReporterEmail); err == nil {
		n := &models.Notification{
			UserID:      reporter.ID,
			Type:        nType,
			Title:       title,
			Content:     content,
			ReferenceID: issue.PublicID,
		}
		if err := d.notifications.Create(n); err != nil {
			log.Warnf("[Notify] failed to store status notification for issue %s: %v", issue.PublicID, err)
		}
	}

	if issue.NotifyByEmail {
		body := fmt.Sprintf("<p>%s</p><p>Reference: %s</p>", content, issue.PublicID)
		if issue.Status == models.IssueStatusResolved {
			body += acknowledgeSection(issue)
		}
		if err := d.enqueueEmail(issue.ReporterEmail, title, body, issue.PublicID); err != nil {
			log.Warnf("[Notify] failed to queue reporter email for issue %s: %v", issue.PublicID, err)
		}
	}
}

// acknowledgeSection renders the signed confirm/dispute links for the
// resolution email. Token generation failing just drops the links.
func acknowledgeSection(issue *models.Issue) string {
	secret := env.GetEnv("APP_SECRET", "")
	if secret == "" {
		return ""
	}
	token, err := security.GenerateAckToken(issue.PublicID, issue.ReporterEmail, AckTokenTTL, secret)
	if err != nil {
		log.Warnf("[Notify] failed to generate acknowledgement token for issue %s: %v", issue.PublicID, err)
		return ""
	}

	base := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000") + constants.APIPrefix
	return fmt.Sprintf(
		"<p>Was your issue fixed? <a href=\"%s/public/acknowledge?token=%s&status=%s\">Confirm</a> or <a href=\"%s/public/acknowledge?token=%s&status=%s\">Dispute</a> the resolution.</p>",
		base, token, models.AckConfirmed, base, token, models.AckDisputed,
	)
}
