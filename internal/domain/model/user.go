package model

import (
	"time"

	"telegram-secret-relay/internal/domain"

	"github.com/google/uuid"
)

type Role string

const (
	RoleFree    Role = "free"
	RolePremium Role = "premium"
	RoleSudo    Role = "sudo"
	RoleOwner   Role = "owner"
)

// Privilege is the level required by an operation, ordered weakest first.
type Privilege int

const (
	PrivilegeNone Privilege = iota
	PrivilegePremium
	PrivilegeSudo
	PrivilegeOwner
)

// Settings are the per-user toggles shown in the settings menu.
type Settings struct {
	NotifyOnView   bool `json:"notify_on_view"`
	ProtectContent bool `json:"protect_content"`
	ShowForwardTag bool `json:"show_forward_tag"`
}

func DefaultSettings() Settings {
	return Settings{NotifyOnView: true, ProtectContent: false, ShowForwardTag: true}
}

// User is a domain entity representing a Telegram user in our system.
type User struct {
	ID            string
	TelegramID    int64
	Username      string
	Role          Role
	IsPremium     bool
	PremiumUntil  *time.Time
	IsSudo        bool
	Banned        bool
	BanReason     string
	FirstSeenAt   time.Time
	LastActiveAt  time.Time
	Settings      Settings
	SharesCreated int64
}

func NewUser(id string, tgID int64, username string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:           id,
		TelegramID:   tgID,
		Username:     username,
		Role:         RoleFree,
		FirstSeenAt:  now,
		LastActiveAt: now,
		Settings:     DefaultSettings(),
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }
func (u *User) Touch()       { u.LastActiveAt = time.Now() }

// ExpirePremium reverts a lapsed premium grant. Returns true when the
// user record changed and needs saving.
func (u *User) ExpirePremium(now time.Time) bool {
	if !u.IsPremium || u.PremiumUntil == nil || u.PremiumUntil.After(now) {
		return false
	}
	u.IsPremium = false
	u.PremiumUntil = nil
	if u.Role == RolePremium {
		u.Role = RoleFree
	}
	return true
}

func (u *User) GrantPremium(until time.Time) {
	u.IsPremium = true
	u.PremiumUntil = &until
	if u.Role == RoleFree {
		u.Role = RolePremium
	}
}

func (u *User) RevokePremium() {
	u.IsPremium = false
	u.PremiumUntil = nil
	if u.Role == RolePremium {
		u.Role = RoleFree
	}
}

func (u *User) SetSudo(on bool) {
	u.IsSudo = on
	switch {
	case on:
		u.Role = RoleSudo
	case u.IsPremium:
		u.Role = RolePremium
	default:
		u.Role = RoleFree
	}
}

func (u *User) Ban(reason string) {
	u.Banned = true
	u.BanReason = reason
}

func (u *User) Unban() {
	u.Banned = false
	u.BanReason = ""
}

// Allowed reports whether the user clears the given privilege level.
// ownerID is the configured owner; the owner clears every level.
func (u *User) Allowed(p Privilege, ownerID int64) bool {
	if u == nil {
		return p == PrivilegeNone
	}
	if u.TelegramID == ownerID || u.Role == RoleOwner {
		return true
	}
	switch p {
	case PrivilegeNone:
		return true
	case PrivilegePremium:
		return u.IsPremium || u.IsSudo
	case PrivilegeSudo:
		return u.IsSudo
	default:
		return false
	}
}
