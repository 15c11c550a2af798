package model

import "time"

const (
	UnknownBrowser = "unknown"
	DirectReferrer = "Direct"
)

// ClickEvent is an append-only record of one resolved redirect.
type ClickEvent struct {
	ID          int64     `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	ShortLinkID string    `json:"short_link_id" gorm:"column:short_link_id;not null;index"`
	HashedIP    string    `json:"hashed_ip" gorm:"column:hashed_ip;not null"`
	Browser     string    `json:"browser" gorm:"column:browser;not null;default:unknown"`
	Referrer    string    `json:"referrer" gorm:"column:referrer;not null;default:Direct"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ClickEvent) TableName() string {
	return "clicks"
}

// ClickMessage is the JetStream payload for a click that has not been stored yet.
type ClickMessage struct {
	ID          string    `json:"id"`
	ShortLinkID string    `json:"short_link_id"`
	HashedIP    string    `json:"hashed_ip"`
	Browser     string    `json:"browser"`
	Referrer    string    `json:"referrer"`
	Timestamp   time.Time `json:"timestamp"`
}

// Event converts the message into the row that gets persisted.
func (m ClickMessage) Event() *ClickEvent {
	return &ClickEvent{
		ShortLinkID: m.ShortLinkID,
		HashedIP:    m.HashedIP,
		Browser:     m.Browser,
		Referrer:    m.Referrer,
		CreatedAt:   m.Timestamp,
	}
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-recorder"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
