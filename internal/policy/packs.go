package policy

import (
	"time"

	"github.com/yungbote/entitlement-engine/internal/domain/user"
)

var packMonths = map[user.Pack]int{
	user.PackEssentiel: 9,
	user.PackExpert:    27,
	user.PackMaster:    36,
}

// PackMonths returns the subscription length bought by pack, 0 for unknown packs.
func PackMonths(pack user.Pack) int {
	return packMonths[pack]
}

// ExtendSubscription adds the pack duration on top of whichever is later:
// the current end or now. The result is never earlier than currentEnd.
func ExtendSubscription(currentEnd *time.Time, now time.Time, pack user.Pack) time.Time {
	base := now.UTC()
	if currentEnd != nil && currentEnd.After(base) {
		base = currentEnd.UTC()
	}
	return base.AddDate(0, PackMonths(pack), 0)
}

// RankPack orders packs by breadth of access.
func RankPack(pack user.Pack) int {
	switch pack {
	case user.PackMaster:
		return 3
	case user.PackExpert:
		return 2
	case user.PackEssentiel:
		return 1
	default:
		return 0
	}
}

// MergePack keeps the broader of the held pack and the purchased one.
func MergePack(held, bought user.Pack) user.Pack {
	if RankPack(bought) >= RankPack(held) {
		return bought
	}
	return held
}
