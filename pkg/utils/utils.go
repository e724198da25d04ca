package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// IsUnixSeconds 检查时间戳是否为秒级
func IsUnixSeconds(ts int64) bool {
	// 定义时间戳范围：1970-01-01 到 2100-01-01
	const maxUnix = 4_102_444_800 // 2100-01-01 00:00:00 UTC
	return ts >= 0 && ts < maxUnix
}

// AdjustDecimals 原始精度数值转换为带小数的数值
func AdjustDecimals(value decimal.Decimal, decimals int) decimal.Decimal {
	if decimals <= 0 {
		return value
	}
	return value.Shift(int32(-decimals))
}

// FormatUnits 格式化单位转换，保留 places 位小数
func FormatUnits(value decimal.Decimal, decimals int, places int32) string {
	return AdjustDecimals(value, decimals).StringFixed(places)
}

const ttsAllowed = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789.,!?()'\"-:; "

const ttsPunct = ".,!?;:-"

// CleanTextForTTS 只保留语音合成可读的字符，合并重复标点与空白
func CleanTextForTTS(text string) string {
	text = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(text)

	var b strings.Builder
	b.Grow(len(text))
	var prev rune
	for _, r := range text {
		if !strings.ContainsRune(ttsAllowed, r) {
			continue
		}
		if r == prev && strings.ContainsRune(ttsPunct, r) {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
