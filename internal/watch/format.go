package watch

import (
	"fmt"
	"strings"

	"github.com/OmnisXopowo/delta-helper-bot/internal/delta"
)

// broadcastThreshold is the amount (extracted or lost) above which a match
// qualifies for a broadcast.
const broadcastThreshold = 1_000_000

var mapNames = map[string]string{
	"1901": "零号大坝",
	"1902": "长弓溪谷",
	"2201": "巴克什",
	"2202": "航天基地",
	"3901": "潮汐监狱",
}

// MapName resolves a map id to its display name.
func MapName(id string) string {
	if name, ok := mapNames[id]; ok {
		return name
	}
	return fmt.Sprintf("未知地图(%s)", id)
}

// FormatDuration renders a second count as "X分Y秒".
func FormatDuration(seconds int) string {
	return fmt.Sprintf("%d分%d秒", seconds/60, seconds%60)
}

// ReadableAmount renders a money amount in 万/亿 units.
func ReadableAmount(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	switch {
	case n >= 100_000_000:
		return fmt.Sprintf("%s%.2f亿", sign, float64(n)/100_000_000)
	case n >= 10_000:
		return fmt.Sprintf("%s%.1f万", sign, float64(n)/10_000)
	default:
		return fmt.Sprintf("%s%d", sign, n)
	}
}

// formatBroadcast classifies a record against the broadcast thresholds and
// builds the announcement text. ok is false for sub-threshold matches.
func formatBroadcast(rec *delta.Record, playerName string) (message string, ok bool) {
	finalPrice := int64(rec.FinalPrice)
	loss := rec.Loss()

	var headline string
	switch {
	case finalPrice > broadcastThreshold:
		headline = "百万撤离！"
	case loss > broadcastThreshold:
		headline = "百万战损！"
	default:
		return "", false
	}

	result := "撤离失败"
	if rec.EscapeSucceeded() {
		result = "撤离成功"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🎯 %s %s\n", playerName, headline)
	fmt.Fprintf(&sb, "⏰ 时间: %s\n", rec.EventTime)
	fmt.Fprintf(&sb, "🗺️ 地图: %s\n", MapName(rec.MapID))
	fmt.Fprintf(&sb, "📊 结果: %s\n", result)
	fmt.Fprintf(&sb, "⏱️ 存活时长: %s\n", FormatDuration(rec.DurationS))
	fmt.Fprintf(&sb, "💀 击杀干员: %d\n", rec.KillCount)
	fmt.Fprintf(&sb, "💰 带出: %s\n", ReadableAmount(finalPrice))
	fmt.Fprintf(&sb, "💸 战损: %s", ReadableAmount(loss))
	return sb.String(), true
}
