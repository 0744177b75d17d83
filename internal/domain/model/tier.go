package model

// MaxSecretTextLen caps text payloads stored directly in the share row.
const MaxSecretTextLen = 4000

// Tier bundles the per-tier ceilings applied when creating shares.
type Tier struct {
	Name              string
	MaxFileSizeMB     int64
	MaxActiveShares   int
	SelfDestructMins  []int // selectable timer values, minutes
	MaxViewsChoices   []int // selectable view caps, 0 = unlimited
	DefaultLinkViews  int   // cap for inline-created link shares
}

var (
	TierFree = Tier{
		Name:             "free",
		MaxFileSizeMB:    1024,
		MaxActiveShares:  500,
		SelfDestructMins: []int{1, 5, 10, 30, 60, 120, 360, 720, 1440},
		MaxViewsChoices:  []int{1, 3, 5, 10},
		DefaultLinkViews: 1,
	}
	TierPremium = Tier{
		Name:             "premium",
		MaxFileSizeMB:    2048,
		MaxActiveShares:  4000,
		SelfDestructMins: []int{1, 5, 10, 30, 60, 120, 360, 720, 1440, 2880},
		MaxViewsChoices:  []int{1, 3, 5, 10, 25, 0},
		DefaultLinkViews: 1,
	}
)

// TierFor picks the tier for a user. Sudo and owner get premium ceilings.
func TierFor(u *User) Tier {
	if u != nil && (u.IsPremium || u.IsSudo || u.Role == RoleOwner) {
		return TierPremium
	}
	return TierFree
}

func (t Tier) AllowsDestructMins(m int) bool {
	for _, v := range t.SelfDestructMins {
		if v == m {
			return true
		}
	}
	return false
}

func (t Tier) AllowsMaxViews(n int) bool {
	for _, v := range t.MaxViewsChoices {
		if v == n {
			return true
		}
	}
	return false
}
