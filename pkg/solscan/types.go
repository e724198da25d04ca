package solscan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// envelope 所有 v2 接口的外层结构；data 可能是对象、数组或缺失
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func (e *envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

// 活动类型：配置中使用友好名称，请求时转换为 provider 的枚举值
var activityCodes = map[string]string{
	"transfer":       "ACTIVITY_SPL_TRANSFER",
	"mint":           "ACTIVITY_SPL_MINT",
	"burn":           "ACTIVITY_SPL_BURN",
	"create_account": "ACTIVITY_SPL_CREATE_ACCOUNT",
}

// ActivityCodes 把友好名称转换为枚举值，已经是枚举值的原样保留，去重
func ActivityCodes(names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no activity types configured")
	}
	seen := make(map[string]bool, len(names))
	codes := make([]string, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		code, ok := activityCodes[key]
		if !ok {
			upper := strings.ToUpper(strings.TrimSpace(name))
			for _, known := range activityCodes {
				if known == upper {
					code, ok = known, true
					break
				}
			}
		}
		if !ok {
			return nil, fmt.Errorf("unknown activity type %q", name)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// provider 只接受固定的 page_size
var pageSizes = []int{10, 20, 30, 40, 60, 100}

// PageSize 不小于 limit 的最小合法 page_size
func PageSize(limit int) int {
	for _, s := range pageSizes {
		if limit <= s {
			return s
		}
	}
	return pageSizes[len(pageSizes)-1]
}
