package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Unknown 字符串字段缺失时的占位值
const Unknown = "unknown"

// TokenMetadata 代币元数据，每个请求从 provider 响应新建，不落库
type TokenMetadata struct {
	Address        string              `json:"address"`
	Name           string              `json:"name"`
	Symbol         string              `json:"symbol"`
	Decimals       *int                `json:"decimals"`
	TotalSupply    decimal.Decimal     `json:"total_supply"` // 原始精度的整数，0 表示未知
	HolderCount    *int64              `json:"holder_count"`
	CreatorAddress string              `json:"creator_address"`
	CreatedAt      *time.Time          `json:"created_at"`
	MarketCap      decimal.NullDecimal `json:"market_cap"`
	Website        string              `json:"website"`
	Twitter        string              `json:"twitter"`
}

// NewTokenMetadata 所有字段均为未知
func NewTokenMetadata(address string) *TokenMetadata {
	return &TokenMetadata{
		Address:        address,
		Name:           Unknown,
		Symbol:         Unknown,
		TotalSupply:    decimal.Zero,
		CreatorAddress: Unknown,
		Website:        Unknown,
		Twitter:        Unknown,
	}
}

func (m *TokenMetadata) SupplyKnown() bool {
	return m != nil && m.TotalSupply.IsPositive()
}

// HasSocials website 或 twitter 任一已知
func (m *TokenMetadata) HasSocials() bool {
	if m == nil {
		return false
	}
	return (m.Website != "" && m.Website != Unknown) || (m.Twitter != "" && m.Twitter != Unknown)
}
