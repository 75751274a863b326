package audit

import (
	"context"
	"time"

	id "sphere/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events that disclose or create personal data,
	// such as a post publishing claim attributes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected verifications, eligibility denials and
	// replayed callbacks.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
// Claim values never go into an event; Reason carries only a denial code.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	UserID     id.UserID
	Subject    string
	Action     string
	Decision   string
	Reason     string
	RequestID  string
	ClientKind string
}

type AuditEvent string

const (
	EventUserCreated AuditEvent = "user_created"

	EventPostCreated AuditEvent = "post_created"
	EventPostPosted  AuditEvent = "post_posted"
	EventPostFailed  AuditEvent = "post_failed"
	EventPostLiked   AuditEvent = "post_liked"
	EventPostUnliked AuditEvent = "post_unliked"

	EventCommentCreated AuditEvent = "comment_created"
	EventCommentPosted  AuditEvent = "comment_posted"
	EventCommentFailed  AuditEvent = "comment_failed"
	EventCommentDenied  AuditEvent = "comment_denied"

	EventPendingSuperseded    AuditEvent = "pending_superseded"
	EventPendingExpired       AuditEvent = "pending_expired"
	EventVerificationReplayed AuditEvent = "verification_replayed"

	EventRewardRecorded AuditEvent = "reward_recorded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventUserCreated:    CategoryCompliance,
	EventPostPosted:     CategoryCompliance,
	EventCommentPosted:  CategoryCompliance,
	EventRewardRecorded: CategoryCompliance,

	EventPostFailed:           CategorySecurity,
	EventCommentFailed:        CategorySecurity,
	EventCommentDenied:        CategorySecurity,
	EventVerificationReplayed: CategorySecurity,

	EventPostCreated:       CategoryOperations,
	EventCommentCreated:    CategoryOperations,
	EventPostLiked:         CategoryOperations,
	EventPostUnliked:       CategoryOperations,
	EventPendingSuperseded: CategoryOperations,
	EventPendingExpired:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
