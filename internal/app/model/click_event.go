package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Click is a single visit appended to a link's log. Clicks are never modified.
type Click struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	LinkCode  string    `json:"link_code" gorm:"size:20;not null;index:idx_clicks_link_time,priority:1"`
	IP        string    `json:"ip" gorm:"size:64;not null"`
	UserAgent string    `json:"user_agent" gorm:"type:text"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_clicks_link_time,priority:2"`
}

// ClickEvent is the message carried over the click stream before it becomes a Click.
type ClickEvent struct {
	ID        string    `json:"id"`
	LinkCode  string    `json:"link_code"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

// NewClickEvent stamps a visit with a fresh id. The id doubles as the Click primary key,
// so a redelivered event is recorded once.
func NewClickEvent(code, ip, userAgent string, at time.Time) ClickEvent {
	return ClickEvent{
		ID:        uuid.New().String(),
		LinkCode:  code,
		IP:        ip,
		UserAgent: userAgent,
		Timestamp: at,
	}
}

// Click converts the event into the log entry stored with the link.
func (e ClickEvent) Click() *Click {
	return &Click{
		ID:        e.ID,
		LinkCode:  e.LinkCode,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Timestamp: e.Timestamp,
	}
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-tracker"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)

// AnonymizeIP masks the last IPv4 octet ("1.2.3.xxx") or the last IPv6 group.
func AnonymizeIP(ip string) string {
	if i := strings.LastIndex(ip, "."); i >= 0 {
		return ip[:i] + ".xxx"
	}
	if i := strings.LastIndex(ip, ":"); i >= 0 {
		return ip[:i] + ":xxxx"
	}
	return "xxx"
}
