package queue

const (
	TypeViolationNotification = "email:violation_notification"
	TypeResidentNotice        = "email:resident_notice"
	TypeSubscriptionEmail     = "email:subscription"
)

// Subscription email kinds carried in SubscriptionEmailPayload.Kind.
const (
	EmailWelcome               = "welcome"
	EmailSubscriptionCancelled = "subscription_cancelled"
)

// ViolationNotificationPayload tells the HOA's notification addresses about
// a newly submitted report.
type ViolationNotificationPayload struct {
	HOAID       string `json:"hoa_id"`
	ViolationID string `json:"violation_id"`
}

// ResidentNoticePayload carries an admin-written notice about a violation.
type ResidentNoticePayload struct {
	HOAID       string `json:"hoa_id"`
	ViolationID string `json:"violation_id"`
	Recipient   string `json:"recipient"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
}

type SubscriptionEmailPayload struct {
	HOAID string `json:"hoa_id"`
	Kind  string `json:"kind"`
}
