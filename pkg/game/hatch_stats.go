package game

import (
	"sort"
	"time"

	"github.com/decker502/sanctuary/pkg/sanctuary"
)

// HatchStats 每日孵化次数统计
// 窗口起点与视图过滤一致（本周为今天-6天，本月为上个月同一天（月末截断），今年为今天-364天）
type HatchStats struct {
	counts map[string]int // 日期(YYYY-MM-DD) -> 次数
}

// NewHatchStats 从持久化的记录创建统计
func NewHatchStats(records []DailyHatchCount) *HatchStats {
	hs := &HatchStats{counts: make(map[string]int, len(records))}
	for _, r := range records {
		if r.Count > 0 {
			hs.counts[r.Date] += r.Count
		}
	}
	return hs
}

// Record 记录一次孵化
func (hs *HatchStats) Record(now time.Time) {
	hs.counts[sanctuary.Today(now).Format(sanctuary.DateLayout)]++
}

// Daily 今天的孵化次数
func (hs *HatchStats) Daily(now time.Time) int {
	return hs.sum(sanctuary.ViewDay, now)
}

// Weekly 本周的孵化次数
func (hs *HatchStats) Weekly(now time.Time) int {
	return hs.sum(sanctuary.ViewWeek, now)
}

// Monthly 本月的孵化次数
func (hs *HatchStats) Monthly(now time.Time) int {
	return hs.sum(sanctuary.ViewMonth, now)
}

// Yearly 今年的孵化次数
func (hs *HatchStats) Yearly(now time.Time) int {
	return hs.sum(sanctuary.ViewYear, now)
}

// sum 统计窗口内的次数，无法解析的日期被忽略
func (hs *HatchStats) sum(w sanctuary.ViewWindow, now time.Time) int {
	total := 0
	for day, n := range hs.counts {
		d, err := time.ParseInLocation(sanctuary.DateLayout, day, now.Location())
		if err != nil {
			continue
		}
		if sanctuary.InWindow(w, d, now) {
			total += n
		}
	}
	return total
}

// Records 返回按日期排序的记录，用于持久化
func (hs *HatchStats) Records() []DailyHatchCount {
	records := make([]DailyHatchCount, 0, len(hs.counts))
	for day, n := range hs.counts {
		records = append(records, DailyHatchCount{Date: day, Count: n})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date < records[j].Date })
	return records
}
