package game

import (
	"testing"
	"time"
)

// TestHatchStatsWindows 以 2024-06-15 为今天统计各窗口的孵化次数
func TestHatchStatsWindows(t *testing.T) {
	now := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	hs := NewHatchStats([]DailyHatchCount{
		{Date: "2024-06-15", Count: 2},
		{Date: "2024-06-09", Count: 3}, // 本周第一天
		{Date: "2024-06-08", Count: 4}, // 刚好超出本周
		{Date: "2024-05-15", Count: 5}, // 一个日历月前
		{Date: "2023-06-17", Count: 6}, // 今年第一天
		{Date: "2023-06-16", Count: 7}, // 刚好超出今年
		{Date: "not-a-date", Count: 100},
		{Date: "2024-06-16", Count: 100}, // 未来日期
	})

	tests := []struct {
		name string
		got  int
		want int
	}{
		{name: "Daily", got: hs.Daily(now), want: 2},
		{name: "Weekly", got: hs.Weekly(now), want: 5},
		{name: "Monthly", got: hs.Monthly(now), want: 14},
		{name: "Yearly", got: hs.Yearly(now), want: 20},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
}

// TestHatchStatsMonthlyAtMonthEnd 3-31 的本月统计从 2-29 开始
func TestHatchStatsMonthlyAtMonthEnd(t *testing.T) {
	now := time.Date(2024, 3, 31, 9, 0, 0, 0, time.UTC)
	hs := NewHatchStats([]DailyHatchCount{
		{Date: "2024-02-28", Count: 1}, // 超出本月
		{Date: "2024-02-29", Count: 2},
		{Date: "2024-03-01", Count: 3},
		{Date: "2024-03-31", Count: 4},
	})

	if got := hs.Monthly(now); got != 9 {
		t.Errorf("Monthly = %d, want 9", got)
	}
}

func TestHatchStatsRecord(t *testing.T) {
	now := time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC)
	hs := NewHatchStats(nil)

	hs.Record(now)
	hs.Record(now)
	hs.Record(now.AddDate(0, 0, -1))

	if hs.Daily(now) != 2 {
		t.Errorf("Daily = %d, want 2", hs.Daily(now))
	}

	records := hs.Records()
	if len(records) != 2 {
		t.Fatalf("Records() has %d entries, want 2", len(records))
	}
	if records[0].Date != "2024-06-14" || records[1].Date != "2024-06-15" || records[1].Count != 2 {
		t.Errorf("Records() = %+v, want sorted by date", records)
	}
}
