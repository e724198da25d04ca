package analyzer

import (
	"errors"
	"sort"

	"token-risk/internal/server/model"

	"github.com/shopspring/decimal"
)

// ErrInsufficientData 没有拿到任何转账记录，区别于"集中度为 0"
var ErrInsufficientData = errors.New("insufficient transfer data")

var hundred = decimal.NewFromInt(100)

// Report 早期转账的供应集中度，计算后不可变
type Report struct {
	TotalAcquired      decimal.Decimal
	SupplyPercentage   decimal.Decimal // 保留两位小数；供应量未知时为 0
	PerRecipientTotals map[string]decimal.Decimal
	RepeatRecipients   []string // 窗口内收到多于一笔转账的地址，按字典序
	SampleSize         int
}

// Analyze 汇总转账金额并计算占总供应量的百分比。
// totalSupply <= 0 视为未知，百分比记为 0
func Analyze(transfers []model.TransferRecord, totalSupply decimal.Decimal) (*Report, error) {
	if len(transfers) == 0 {
		return nil, ErrInsufficientData
	}

	total := decimal.Zero
	perRecipient := make(map[string]decimal.Decimal, len(transfers))
	counts := make(map[string]int, len(transfers))
	for _, t := range transfers {
		amount := t.Amount
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		total = total.Add(amount)
		perRecipient[t.ToAddress] = perRecipient[t.ToAddress].Add(amount)
		counts[t.ToAddress]++
	}

	repeats := make([]string, 0)
	for addr, n := range counts {
		if n > 1 {
			repeats = append(repeats, addr)
		}
	}
	sort.Strings(repeats)

	return &Report{
		TotalAcquired:      total,
		SupplyPercentage:   SupplyPercentage(total, totalSupply),
		PerRecipientTotals: perRecipient,
		RepeatRecipients:   repeats,
		SampleSize:         len(transfers),
	}, nil
}

// SupplyPercentage acquired / supply * 100，四舍五入到两位小数
func SupplyPercentage(acquired, totalSupply decimal.Decimal) decimal.Decimal {
	if !totalSupply.IsPositive() {
		return decimal.Zero
	}
	return acquired.Mul(hundred).DivRound(totalSupply, 2)
}

// Percentage 以 float64 返回，供分级使用
func (r *Report) Percentage() float64 {
	return r.SupplyPercentage.InexactFloat64()
}

// ToModel 转换为对外的 JSON 结构
func (r *Report) ToModel() *model.Concentration {
	pct := r.Percentage()
	totals := make(map[string]string, len(r.PerRecipientTotals))
	for addr, v := range r.PerRecipientTotals {
		totals[addr] = v.String()
	}
	return &model.Concentration{
		SupplyPercentage:   &pct,
		TotalAcquired:      r.TotalAcquired.String(),
		SampleSize:         r.SampleSize,
		PerRecipientTotals: totals,
		RepeatRecipients:   r.RepeatRecipients,
	}
}
