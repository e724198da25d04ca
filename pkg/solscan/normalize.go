package solscan

import (
	"fmt"
	"strconv"

	"token-risk/internal/server/model"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

func anomaly(scope, field, detail string) model.Anomaly {
	return model.Anomaly{Scope: scope, Field: field, Detail: detail}
}

// normalizeMeta 把 token/meta 的 data 映射为固定结构，缺失字段使用未知占位值
func normalizeMeta(address string, rec record) (*model.TokenMetadata, []model.Anomaly) {
	meta := model.NewTokenMetadata(address)
	var anomalies []model.Anomaly
	extra := rec.nested("metadata")
	ext := rec.nested("extensions")

	if s := rec.str("name"); s != "" {
		meta.Name = s
	} else if s := extra.str("name"); s != "" {
		meta.Name = s
	}
	if s := rec.str("symbol"); s != "" {
		meta.Symbol = s
	} else if s := extra.str("symbol"); s != "" {
		meta.Symbol = s
	}

	if d, ok, present := rec.number("decimals"); ok && !d.IsNegative() {
		n := int(d.IntPart())
		meta.Decimals = &n
	} else if present {
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "decimals", "not a non-negative number"))
	}

	switch d, ok, present := rec.number("supply"); {
	case !present:
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "supply", "missing"))
	case !ok:
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "supply", "not numeric"))
	case d.IsNegative():
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "supply", "negative"))
	default:
		if !d.Equal(d.Truncate(0)) {
			anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "supply", "fractional value truncated"))
		}
		meta.TotalSupply = d.Truncate(0)
	}

	holderKey := "holder"
	if !rec.has(holderKey) && rec.has("holders") {
		holderKey = "holders"
	}
	switch d, ok, present := rec.number(holderKey); {
	case !present:
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "holder", "missing"))
	case !ok || d.IsNegative():
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "holder", "not a non-negative number"))
	default:
		n := d.IntPart()
		meta.HolderCount = &n
	}

	if s := rec.str("creator", "creator_address", "owner"); s != "" {
		if _, err := solana.PublicKeyFromBase58(s); err != nil {
			anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "creator", "not a valid address"))
		} else {
			meta.CreatorAddress = s
		}
	}

	if t, ok := rec.unixTime("created_time"); ok {
		meta.CreatedAt = &t
	} else if t, ok := rec.unixTime("first_mint_time"); ok {
		meta.CreatedAt = &t
	} else {
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "created_time", "missing or invalid"))
	}

	if d, ok, present := rec.number("market_cap"); ok && !d.IsNegative() {
		meta.MarketCap = decimal.NewNullDecimal(d)
	} else if present {
		anomalies = append(anomalies, anomaly(model.ScopeTokenMeta, "market_cap", "not a non-negative number"))
	}

	meta.Website = firstSocial(meta.Website, rec.str("website"), extra.str("website"), ext.str("website"))
	meta.Twitter = firstSocial(meta.Twitter, rec.str("twitter"), extra.str("twitter"), ext.str("twitter"))

	return meta, anomalies
}

func firstSocial(fallback string, candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return fallback
}

// normalizeTransfer 缺少接收方的记录丢弃；金额非法时置 0 并记录 anomaly
func normalizeTransfer(idx int, rec record) (model.TransferRecord, []model.Anomaly, bool) {
	var anomalies []model.Anomaly
	where := "record " + strconv.Itoa(idx)

	to := rec.str("to_address", "to")
	if to == "" {
		anomalies = append(anomalies, anomaly(model.ScopeTransfer, "to_address", where+": missing, record dropped"))
		return model.TransferRecord{}, anomalies, false
	}

	t := model.TransferRecord{
		TransactionID: rec.str("trans_id", "tx_hash", "signature"),
		FromAddress:   rec.str("from_address", "from"),
		ToAddress:     to,
		Amount:        decimal.Zero,
		ActivityType:  rec.str("activity_type"),
	}
	if t.TransactionID == "" {
		anomalies = append(anomalies, anomaly(model.ScopeTransfer, "trans_id", where+": missing"))
	}

	if ts, ok := rec.unixTime("block_time"); ok {
		t.Timestamp = ts
	} else if ts, ok := rec.unixTime("time"); ok {
		t.Timestamp = ts
	} else {
		anomalies = append(anomalies, anomaly(model.ScopeTransfer, "block_time", where+": missing or invalid"))
	}

	switch d, ok, present := rec.number("amount"); {
	case !present:
		anomalies = append(anomalies, anomaly(model.ScopeTransfer, "amount", where+": missing"))
	case !ok:
		anomalies = append(anomalies, anomaly(model.ScopeTransfer, "amount", where+": not numeric"))
	case d.IsNegative():
		anomalies = append(anomalies, anomaly(model.ScopeTransfer, "amount", fmt.Sprintf("%s: negative value %s clamped", where, d)))
	default:
		if !d.Equal(d.Truncate(0)) {
			anomalies = append(anomalies, anomaly(model.ScopeTransfer, "amount", where+": fractional value truncated"))
		}
		t.Amount = d.Truncate(0)
	}

	if d, ok, _ := rec.number("value"); ok {
		t.Value = decimal.NewNullDecimal(d)
	}

	return t, anomalies, true
}
