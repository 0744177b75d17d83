package model

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"telegram-secret-relay/internal/domain"

	"github.com/oklog/ulid/v2"
)

type ShareKind string

const (
	ShareKindText    ShareKind = "text"    // payload stored in the share row
	ShareKindMessage ShareKind = "message" // origin message copied at delivery
	ShareKindInline  ShareKind = "inline"  // created from an inline query
)

type ShareScope string

const (
	ShareScopeUser ShareScope = "user" // delivered to one recipient
	ShareScopeLink ShareScope = "link" // claimable through the deep link
)

type ShareStatus string

const (
	ShareStatusActive     ShareStatus = "active"
	ShareStatusViewed     ShareStatus = "viewed"
	ShareStatusExpired    ShareStatus = "expired"
	ShareStatusDestructed ShareStatus = "destructed"
	ShareStatusRevoked    ShareStatus = "revoked"
)

// Share is one relayed secret. SenderID stays server-side; the recipient
// only ever sees the delivered copy.
type Share struct {
	ID             string
	AccessToken    string
	SenderID       int64
	RecipientID    int64
	Scope          ShareScope
	Kind           ShareKind
	OriginChatID   int64
	OriginMsgID    int
	Payload        string
	Protected      bool
	ShowForwardTag bool
	Status         ShareStatus
	CreatedAt      time.Time
	ExpiresAt      *time.Time
	DestructMins   int
	ViewCount      int
	MaxViews       int // 0 = unlimited
	ViewedAt       *time.Time
	ViewedBy       int64
	// Where the delivered copy landed, so the destruct sweep can remove it.
	DeliveredChatID int64
	DeliveredMsgID  int
	DestructAt      *time.Time
}

func NewShare(senderID int64, kind ShareKind, scope ShareScope) (*Share, error) {
	if senderID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Share{
		ID:        ulid.Make().String(),
		SenderID:  senderID,
		Kind:      kind,
		Scope:     scope,
		Status:    ShareStatusActive,
		CreatedAt: time.Now(),
	}, nil
}

// NewAccessToken mints the bearer token embedded in sharable deep links.
func NewAccessToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Viewable reports whether a claim attempt could still succeed.
func (s *Share) Viewable(now time.Time) bool {
	if s == nil || s.Status != ShareStatusActive {
		return false
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return false
	}
	return s.MaxViews <= 0 || s.ViewCount < s.MaxViews
}

// ExhaustedBy reports whether the given view count hits the max-views cap.
func (s *Share) ExhaustedBy(views int) bool {
	return s.MaxViews > 0 && views >= s.MaxViews
}
