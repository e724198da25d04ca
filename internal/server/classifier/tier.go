package classifier

import (
	"fmt"
	"strings"
)

// Tier 风险等级，数值越大越严重
type Tier int

const (
	TierLow Tier = iota
	TierGuarded
	TierElevated
	TierHigh
	TierSevere
)

var tierNames = [...]string{"Low", "Guarded", "Elevated", "High", "Severe"}

func (t Tier) String() string {
	if t < TierLow || t > TierSevere {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// ParseTier 大小写不敏感
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown risk tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func AllTiers() []Tier {
	return []Tier{TierLow, TierGuarded, TierElevated, TierHigh, TierSevere}
}
