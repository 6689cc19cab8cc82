package policy

import (
	"time"

	"github.com/yungbote/entitlement-engine/internal/domain/learning"
	"github.com/yungbote/entitlement-engine/internal/domain/user"
)

// MonthsElapsed counts whole calendar months from start to now.
func MonthsElapsed(start, now time.Time) int {
	start = start.UTC()
	now = now.UTC()
	if !now.After(start) {
		return 0
	}
	months := (now.Year()-start.Year())*12 + int(now.Month()-start.Month())
	if start.AddDate(0, months, 0).After(now) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// IsFastTrack reports whether a foundation graduate may skip the monthly
// schedule for a specialty course.
func IsFastTrack(category learning.Category, foundationComplete bool, pack user.Pack) bool {
	return category == learning.CategorySpecialite && foundationComplete && pack.HasPack()
}

// TemporalGate requires MonthsElapsed(subscription_start, now) >= unlock_at_month
// unless fastTrack holds.
func TemporalGate(p *user.Profile, course *learning.Course, fastTrack bool, now time.Time) Decision {
	if course == nil || course.UnlockAtMonth <= 0 {
		return allow(ReasonTimeReached)
	}
	if p != nil && p.IsAdmin() {
		return allow(ReasonAdmin)
	}
	if fastTrack {
		return allow(ReasonFastTrack)
	}
	if p == nil || p.SubscriptionStart == nil {
		return deny(ReasonLockedTime)
	}
	if MonthsElapsed(*p.SubscriptionStart, now) >= course.UnlockAtMonth {
		return allow(ReasonTimeReached)
	}
	unlockAt := p.SubscriptionStart.UTC().AddDate(0, course.UnlockAtMonth, 0)
	d := deny(ReasonLockedTime)
	d.UnlockAt = &unlockAt
	return d
}

type Gate string

const (
	GatePolicy   Gate = "policy"
	GateTemporal Gate = "temporal"
)

// CourseDecision combines the category policy and the temporal gate.
type CourseDecision struct {
	Decision
	// Gate names the gate that denied; empty when allowed.
	Gate     Gate     `json:"gate,omitempty"`
	Policy   Decision `json:"policy"`
	Temporal Decision `json:"temporal"`
}

type CourseInput struct {
	Profile            *user.Profile
	Course             *learning.Course
	FoundationComplete bool
	Now                time.Time
}

// EvaluateCourse runs both gates. Each gate keeps its own reason so callers
// can route a pack denial to pricing and a time denial to a countdown.
func EvaluateCourse(in CourseInput) CourseDecision {
	out := CourseDecision{}
	if in.Course == nil {
		out.Decision = deny(ReasonLockedPack)
		out.Gate = GatePolicy
		return out
	}
	out.Policy = CheckAccess(in.Profile, in.Course.Category, in.Course.RelatedSpecialty, in.Now)

	pack := user.PackNone
	if in.Profile != nil {
		pack = in.Profile.Pack
	}
	fast := IsFastTrack(in.Course.Category, in.FoundationComplete, pack)
	out.Temporal = TemporalGate(in.Profile, in.Course, fast, in.Now)

	switch {
	case !out.Policy.Allowed:
		out.Decision = out.Policy
		out.Gate = GatePolicy
	case !out.Temporal.Allowed:
		out.Decision = out.Temporal
		out.Gate = GateTemporal
	default:
		out.Decision = out.Policy
	}
	return out
}
