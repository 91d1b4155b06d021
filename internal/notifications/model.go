package notifications

import "time"

type Category string

const (
	Alert   Category = "alert"
	Warning Category = "warning"
	Success Category = "success"
	Info    Category = "info"
)

// Topic identifies what a notification is about; together with recipient and subject it forms
// the cooldown key for scheduled reminders.
type Topic string

const (
	TopicLoanReminder        Topic = "loan.reminder"
	TopicLoanOverdue         Topic = "loan.overdue"
	TopicLoanCreated         Topic = "loan.created"
	TopicLoanPickupConfirmed Topic = "loan.pickup_confirmed"
	TopicLoanReturned        Topic = "loan.returned"
	TopicLoanCancelled       Topic = "loan.cancelled"

	TopicReservationCreated   Topic = "reservation.created"
	TopicReservationConfirmed Topic = "reservation.confirmed"
	TopicReservationCancelled Topic = "reservation.cancelled"
	TopicReservationConverted Topic = "reservation.converted"
	TopicReservationExpired   Topic = "reservation.expired"

	TopicRequestCreated         Topic = "request.created"
	TopicRequestApproved        Topic = "request.approved"
	TopicRequestRejected        Topic = "request.rejected"
	TopicRequestPickupConfirmed Topic = "request.pickup_confirmed"
)

type Notification struct {
	ID             uint64    `json:"id"`
	ULID           string    `json:"ulid"`
	RecipientID    string    `json:"recipient_id"`
	Category       Category  `json:"category"`
	Topic          Topic     `json:"topic"`
	SubjectID      uint64    `json:"subject_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	ActionRequired bool      `json:"action_required"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// Input is what the sink accepts.
type Input struct {
	RecipientID    string
	Category       Category
	Topic          Topic
	SubjectID      uint64
	Title          string
	Message        string
	ActionRequired bool
}

type ListResult struct {
	Items      []Notification `json:"items"`
	Total      int64          `json:"total"`
	Unread     int64          `json:"unread"`
	NextOffset int            `json:"next_offset"`
}
