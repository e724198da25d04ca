package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferRecord 一条链上转账，按时间升序排列
type TransferRecord struct {
	TransactionID string              `json:"transaction_id"`
	Timestamp     time.Time           `json:"timestamp"`
	FromAddress   string              `json:"from_address"`
	ToAddress     string              `json:"to_address"`
	Amount        decimal.Decimal     `json:"amount"` // 非负整数，原始精度
	Value         decimal.NullDecimal `json:"value"`
	ActivityType  string              `json:"activity_type"`
}

// Anomaly 上游记录缺字段或字段非法时的观测记录，只用于日志和指标
type Anomaly struct {
	Scope  string `json:"scope"`
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

const (
	ScopeTokenMeta = "token_meta"
	ScopeTransfer  = "transfer"
)
