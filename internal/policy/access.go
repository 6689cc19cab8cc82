package policy

import (
	"strings"
	"time"

	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
)

// TrialWindow is measured from account creation.
const TrialWindow = 7 * 24 * time.Hour

type Reason string

const (
	ReasonAdmin        Reason = "admin"
	ReasonSubscription Reason = "subscription"
	ReasonTrial        Reason = "trial"
	ReasonLockedPack   Reason = "locked_pack"
	ReasonExpired      Reason = "expired"
	ReasonLockedTime   Reason = "locked_time"
	ReasonTimeReached  Reason = "time_reached"
	ReasonFastTrack    Reason = "fast_track"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
	// UnlockAt is set on a locked_time denial.
	UnlockAt *time.Time `json:"unlock_at,omitempty"`
}

func allow(r Reason) Decision { return Decision{Allowed: true, Reason: r} }
func deny(r Reason) Decision  { return Decision{Allowed: false, Reason: r} }

// CheckAccess evaluates the category policy in priority order:
// admin, active subscription, trial, expired.
func CheckAccess(p *user.Profile, category learning.Category, courseSpecialty string, now time.Time) Decision {
	if p == nil {
		return deny(ReasonExpired)
	}
	if p.IsAdmin() {
		return allow(ReasonAdmin)
	}

	if p.HasActiveSubscription(now) {
		switch p.Pack {
		case user.PackMaster:
			return allow(ReasonSubscription)
		case user.PackEssentiel, user.PackExpert:
			switch category {
			case learning.CategoryTroncCommun:
				return allow(ReasonSubscription)
			case learning.CategorySpecialite:
				if specialtyMatches(p.Specialty, courseSpecialty) {
					return allow(ReasonSubscription)
				}
				return deny(ReasonLockedPack)
			default:
				return deny(ReasonLockedPack)
			}
		}
	}

	if now.Before(p.CreatedAt.Add(TrialWindow)) {
		if category == learning.CategoryTroncCommun {
			return allow(ReasonTrial)
		}
		return deny(ReasonLockedPack)
	}

	return deny(ReasonExpired)
}

// An unset profile specialty means the student is still browsing tracks.
func specialtyMatches(profileSpecialty, courseSpecialty string) bool {
	ps := strings.TrimSpace(profileSpecialty)
	if ps == "" {
		return true
	}
	return strings.EqualFold(ps, strings.TrimSpace(courseSpecialty))
}
