package model

import (
	"time"

	"gorm.io/gorm"
)

// Link describes a short link together with its embedded click log.
type Link struct {
	Code        string     `db:"code" gorm:"primaryKey;size:20"`
	OriginalURL string     `db:"original_url" gorm:"type:text;not null;index:idx_links_owner_url,priority:2"`
	Fingerprint string     `db:"fingerprint" gorm:"size:16;index:idx_links_owner_fingerprint,priority:2"`
	OwnerID     *string    `db:"owner_id" gorm:"size:64;index:idx_links_owner_fingerprint,priority:1;index:idx_links_owner_url,priority:1;index:idx_links_owner_created,priority:1"`
	IsActive    bool       `db:"is_active" gorm:"not null;default:true"`
	ExpiresAt   *time.Time `db:"expires_at" gorm:"index"`
	TotalClicks int64      `db:"total_clicks" gorm:"not null;default:0"`
	Clicks      []Click    `gorm:"foreignKey:LinkCode;references:Code;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time  `db:"created_at" gorm:"autoCreateTime;index:idx_links_owner_created,priority:2"`
	UpdatedAt   time.Time  `db:"updated_at" gorm:"autoUpdateTime"`
	// DeletedAt keeps the row, and with it the code, after an owner deletes the link.
	DeletedAt gorm.DeletedAt `db:"deleted_at" gorm:"index"`
}

// IsExpired reports whether the link has an expiry earlier than now.
func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// IsOwnedBy reports whether ownerID owns the link. Anonymous links are owned by nobody.
func (l *Link) IsOwnedBy(ownerID string) bool {
	return l.OwnerID != nil && ownerID != "" && *l.OwnerID == ownerID
}

// Owner returns the owner id or "" for anonymous links.
func (l *Link) Owner() string {
	if l.OwnerID == nil {
		return ""
	}
	return *l.OwnerID
}

// Clone returns a deep copy, including the click log.
func (l *Link) Clone() *Link {
	cp := *l
	if l.OwnerID != nil {
		owner := *l.OwnerID
		cp.OwnerID = &owner
	}
	if l.ExpiresAt != nil {
		exp := *l.ExpiresAt
		cp.ExpiresAt = &exp
	}
	if l.Clicks != nil {
		cp.Clicks = make([]Click, len(l.Clicks))
		copy(cp.Clicks, l.Clicks)
	}
	return &cp
}

// OwnerRef converts an owner id into the nullable column value.
func OwnerRef(ownerID string) *string {
	if ownerID == "" {
		return nil
	}
	return &ownerID
}
