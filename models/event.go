package models

import "time"

/************************************************
/**** MARK: EVENT OUTCOME ****/
/************************************************/
const EVENT_OUTCOME_DELIVERED = "delivered"
const EVENT_OUTCOME_USER_UNREACHABLE = "user_unreachable"
const EVENT_OUTCOME_ECHO_IGNORED = "echo_ignored"
const EVENT_OUTCOME_STATUS_IGNORED = "status_ignored"
const EVENT_OUTCOME_COMPLETION_FAILED = "completion_failed"
const EVENT_OUTCOME_DELIVERY_FAILED = "delivery_failed"
const EVENT_OUTCOME_INTERNAL_ERROR = "internal_error"

// Event is one relayed inbound message and how it ended.
// The same inbound message relayed twice produces two rows.
type Event struct {
	ID             int64      `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	RelayID        string     `gorm:"not null;unique_index" json:"relay_id"`
	Platform       string     `gorm:"not null;default:''" json:"platform"`
	SenderID       string     `gorm:"not null;index" json:"sender_id"`
	RecipientID    string     `gorm:"default:''" json:"recipient_id"`
	MessageID      string     `gorm:"default:''" json:"message_id"`
	Timestamp      int64      `gorm:"default:0" json:"timestamp"`
	Text           string     `gorm:"type:text" json:"text"`
	ReplyText      string     `gorm:"type:text" json:"reply_text"`
	Outcome        string     `gorm:"not null;index" json:"outcome"`
	UpstreamStatus int        `gorm:"default:0" json:"upstream_status"`
	CreatedAt      *time.Time `gorm:"index" json:"created_at"`
}

func (Event) TableName() string {
	return "relay_events"
}
