package classifier

import (
	"errors"
	"fmt"
	"math"

	"token-risk/internal/server/config"
	"token-risk/internal/server/model"
)

// Band 一个分级区间：[Lower, 下一个 Band 的 Lower)，最后一个 Band 无上界
type Band struct {
	Lower     float64
	Tier      Tier
	Rationale string
}

// Assessment 风险评估结果
type Assessment struct {
	Tier      Tier
	Rationale string
}

func (a Assessment) ToModel() *model.Risk {
	return &model.Risk{Tier: a.Tier.String(), Rationale: a.Rationale}
}

// DefaultBands 默认分级表
func DefaultBands() []Band {
	return []Band{
		{Lower: 0, Tier: TierLow, Rationale: "Early buyers hold a small share of supply. Strong pump potential if marketing follows."},
		{Lower: 10, Tier: TierGuarded, Rationale: "Decent distribution, but a quick rug is possible without a content strategy."},
		{Lower: 20, Tier: TierElevated, Rationale: "High risk. Only credible with an experienced team behind it."},
		{Lower: 40, Tier: TierHigh, Rationale: "Very high risk. Treat it as exit-on-pump only."},
		{Lower: 60, Tier: TierSevere, Rationale: "Insider-dominated supply. High probability of a dump."},
	}
}

// Classifier 不可变，可在多个请求间只读共享
type Classifier struct {
	bands []Band
}

// New 校验分级表：非空、从 0 开始、下界严格递增、等级按顺序逐级递增
func New(bands []Band) (*Classifier, error) {
	if len(bands) == 0 {
		return nil, errors.New("risk table is empty")
	}
	if bands[0].Lower != 0 {
		return nil, fmt.Errorf("risk table must start at 0, got %v", bands[0].Lower)
	}
	for i, b := range bands {
		if math.IsNaN(b.Lower) || b.Lower < 0 || b.Lower > 100 {
			return nil, fmt.Errorf("risk band %d: lower bound %v outside [0, 100]", i, b.Lower)
		}
		if b.Rationale == "" {
			return nil, fmt.Errorf("risk band %d (%s): empty rationale", i, b.Tier)
		}
		if i == 0 {
			continue
		}
		if b.Lower <= bands[i-1].Lower {
			return nil, fmt.Errorf("risk band %d: lower bound %v not above %v", i, b.Lower, bands[i-1].Lower)
		}
		if b.Tier <= bands[i-1].Tier {
			return nil, fmt.Errorf("risk band %d: tier %s does not increase over %s", i, b.Tier, bands[i-1].Tier)
		}
	}
	cp := make([]Band, len(bands))
	copy(cp, bands)
	return &Classifier{bands: cp}, nil
}

// FromConfig 从 risk.tiers 配置构造分级表
func FromConfig(cfg config.RiskConfig) (*Classifier, error) {
	bands := make([]Band, 0, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		tier, err := ParseTier(t.Tier)
		if err != nil {
			return nil, fmt.Errorf("risk band %d: %w", i, err)
		}
		bands = append(bands, Band{Lower: t.Lower, Tier: tier, Rationale: t.Rationale})
	}
	return New(bands)
}

// MustDefault 默认表一定合法
func MustDefault() *Classifier {
	c, err := New(DefaultBands())
	if err != nil {
		panic(err)
	}
	return c
}

// Classify 对 [0, 100] 上的任意值给出等级，越界值截断，NaN 视为 0
func (c *Classifier) Classify(supplyPercentage float64) Assessment {
	pct := clamp(supplyPercentage)
	band := c.bands[0]
	for _, b := range c.bands[1:] {
		if pct < b.Lower {
			break
		}
		band = b
	}
	return Assessment{Tier: band.Tier, Rationale: band.Rationale}
}

func (c *Classifier) Bands() []Band {
	cp := make([]Band, len(c.bands))
	copy(cp, c.bands)
	return cp
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
