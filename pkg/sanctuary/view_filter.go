package sanctuary

import (
	"fmt"
	"strings"
	"time"
)

// ViewWindow 时间窗口视图
type ViewWindow int

const (
	// ViewAll 显示全部实体（默认）
	ViewAll ViewWindow = iota
	// ViewDay 今天
	ViewDay
	// ViewWeek 最近 7 天（含今天）
	ViewWeek
	// ViewMonth 最近一个日历月
	ViewMonth
	// ViewYear 最近 365 天（含今天）
	ViewYear
)

// ViewWindows 所有视图，按界面按钮顺序
var ViewWindows = []ViewWindow{ViewAll, ViewDay, ViewWeek, ViewMonth, ViewYear}

// String 返回视图名称
func (w ViewWindow) String() string {
	switch w {
	case ViewAll:
		return "All"
	case ViewDay:
		return "Day"
	case ViewWeek:
		return "Week"
	case ViewMonth:
		return "Month"
	case ViewYear:
		return "Year"
	default:
		return fmt.Sprintf("ViewWindow(%d)", int(w))
	}
}

// ParseViewWindow 解析视图名称（不区分大小写）
func ParseViewWindow(s string) (ViewWindow, error) {
	for _, w := range ViewWindows {
		if strings.EqualFold(strings.TrimSpace(s), w.String()) {
			return w, nil
		}
	}
	return ViewAll, fmt.Errorf("unknown view window %q", s)
}

// DateLayout 持久化日期格式
const DateLayout = "2006-01-02"

// Today 将时间截断到本地日历日的零点
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// WindowStart 返回窗口的起始日期（含）
//
// Week 和 Year 使用固定天数，Month 使用日历月减法，
// 这种不对称会改变过滤结果，因此保持原样。
func WindowStart(w ViewWindow, today time.Time) time.Time {
	switch w {
	case ViewDay:
		return today
	case ViewWeek:
		return today.AddDate(0, 0, -6)
	case ViewMonth:
		return previousMonth(today)
	case ViewYear:
		return today.AddDate(0, 0, -364)
	default:
		return time.Time{}
	}
}

// previousMonth 返回上个月的同一天，日期超出上个月天数时取该月最后一天
// （3-31 → 2-29 或 2-28，5-31 → 4-30）
func previousMonth(today time.Time) time.Time {
	y, m, d := today.Date()
	first := time.Date(y, m-1, 1, 0, 0, 0, 0, today.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, today.Location())
}

// daysIn 返回指定月份的天数
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// InWindow 判断创建日期是否落在窗口内（按日历日比较，两端包含）
func InWindow(w ViewWindow, createdAt, now time.Time) bool {
	if w == ViewAll {
		return true
	}
	today := Today(now)
	// 创建日期只保留其自身的日历日，避免跨时区换算把日期推到前一天
	y, m, d := createdAt.Date()
	created := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	start := WindowStart(w, today)
	return !created.Before(start) && !created.After(today)
}

// VisibleSet 返回在窗口内可见的实体ID集合
func VisibleSet(reg *Registry, w ViewWindow, now time.Time) map[string]bool {
	visible := make(map[string]bool)
	for _, e := range reg.All() {
		if InWindow(w, e.CreatedAt, now) {
			visible[e.ID] = true
		}
	}
	return visible
}

// VisibleIDs 按注册顺序返回可见实体ID
func VisibleIDs(reg *Registry, w ViewWindow, now time.Time) []string {
	var ids []string
	for _, e := range reg.All() {
		if InWindow(w, e.CreatedAt, now) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
