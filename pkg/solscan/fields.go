package solscan

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"token-risk/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

var recordAPI = sonic.Config{UseNumber: true}.Froze()

// maxExponent 指数超出此范围的数值视为非法，避免 "1e900000000" 一类输入展开成巨大整数
const maxExponent = 40

type record map[string]interface{}

// decodeRecords 解析 data 字段：对象视为单条，数组取其中的对象，缺失/null/空对象返回 nil
func decodeRecords(raw json.RawMessage) ([]record, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	switch trimmed[0] {
	case '{':
		var m map[string]interface{}
		if err := recordAPI.UnmarshalFromString(trimmed, &m); err != nil {
			return nil, err
		}
		if len(m) == 0 {
			return nil, nil
		}
		return []record{record(m)}, nil
	case '[':
		var items []interface{}
		if err := recordAPI.UnmarshalFromString(trimmed, &items); err != nil {
			return nil, err
		}
		out := make([]record, 0, len(items))
		for _, it := range items {
			if m, ok := it.(map[string]interface{}); ok {
				out = append(out, record(m))
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected data payload starting with %q", trimmed[0])
	}
}

func (r record) has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// str 返回第一个非空字符串字段
func (r record) str(keys ...string) string {
	for _, k := range keys {
		switch v := r[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}

func (r record) nested(key string) record {
	if m, ok := r[key].(map[string]interface{}); ok {
		return record(m)
	}
	return nil
}

// number 接受数字、数字字符串和科学计数法；缺失返回 ok=false, present=false
func (r record) number(key string) (d decimal.Decimal, ok bool, present bool) {
	v, exists := r[key]
	if !exists || v == nil {
		return decimal.Zero, false, false
	}
	var s string
	switch t := v.(type) {
	case json.Number:
		s = t.String()
	case string:
		s = strings.TrimSpace(t)
	case float64:
		return bounded(decimal.NewFromFloat(t))
	default:
		return decimal.Zero, false, true
	}
	if s == "" {
		return decimal.Zero, false, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, true
	}
	return bounded(d)
}

func bounded(d decimal.Decimal) (decimal.Decimal, bool, bool) {
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Zero, false, true
	}
	return d, true, true
}

// unixTime 秒级或毫秒级时间戳，也接受 RFC3339 字符串
func (r record) unixTime(key string) (time.Time, bool) {
	if s, isStr := r[key].(string); isStr {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return t.UTC(), true
		}
	}
	d, ok, _ := r.number(key)
	if !ok || d.IsNegative() || d.IsZero() {
		return time.Time{}, false
	}
	ts := d.IntPart()
	if utils.IsUnixSeconds(ts) {
		return time.Unix(ts, 0).UTC(), true
	}
	return time.UnixMilli(ts).UTC(), true
}
