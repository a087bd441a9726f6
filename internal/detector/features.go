package detector

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"payguard/backend/internal/model"
)

// ── 特征提取 ────────────────────────────────────────────────
//
// 一条已完成的工时记录 → 9 维定长特征向量。
// 周末标记只用于生成原因文本，不进入打分向量。
// ─────────────────────────────────────────────────────────────

// NumFeatures 打分向量维度
const NumFeatures = 9

// 特征下标（顺序即划分树引用的位置，不可调整）
const (
	FeatureClockIn = iota
	FeatureClockOut
	FeatureDuration
	FeatureDaysSincePay
	FeatureDaysUntilPay
	FeatureOccupation
	FeaturePayRate
	FeatureDayOfWeek
	FeatureScheduleDeviation
)

const (
	// DefaultScheduledStartHour 员工未分配班表时的计划上班时间
	DefaultScheduledStartHour = 9.0
	// DefaultPayPeriodDays 无待执行发薪周期时，按上次发薪日往后推算的天数
	DefaultPayPeriodDays = 14
)

// Vector 打分向量
type Vector [NumFeatures]float64

// Observation 一条被打分的观测：打分向量与解释用数据分开存放
type Observation struct {
	Vector     Vector
	IsWeekend  bool
	EntryID    string
	EmployeeID string
}

// PayDates 一次扫描内复用的发薪日上下文
type PayDates struct {
	LastExecutedEnd time.Time
	NextEnd         time.Time
}

// ResolvePayDates 计算最近一次已执行发薪周期的结束日与下一个发薪周期结束日
//   - 无已执行周期：最近结束日取 today
//   - 无未来周期：下一个结束日取 最近结束日 + DefaultPayPeriodDays
func ResolvePayDates(cycles []model.PayCycle, today time.Time) PayDates {
	today = dateOnly(today)

	var last, next time.Time
	for _, c := range cycles {
		end := dateOnly(c.PeriodEnd)
		if c.Status == model.PayCycleStatusExecuted {
			if last.IsZero() || end.After(last) {
				last = end
			}
			continue
		}
		if end.Before(today) {
			continue
		}
		if next.IsZero() || end.Before(next) {
			next = end
		}
	}

	if last.IsZero() {
		last = today
	}
	if next.IsZero() {
		next = last.AddDate(0, 0, DefaultPayPeriodDays)
	}
	return PayDates{LastExecutedEnd: last, NextEnd: next}
}

// Extract 从工时记录构建观测；未打卡下班的记录返回 false
func Extract(entry model.TimeEntry, emp model.Employee, scheduledStart float64, pay PayDates) (Observation, bool) {
	if entry.ClockIn == nil || entry.ClockOut == nil {
		return Observation{}, false
	}

	in := minutesSinceMidnight(*entry.ClockIn)
	out := minutesSinceMidnight(*entry.ClockOut)
	day := dateOnly(entry.EntryDate)

	var v Vector
	v[FeatureClockIn] = float64(in) / 60
	v[FeatureClockOut] = float64(out) / 60
	// 同日相减，不做跨日补 24h
	v[FeatureDuration] = float64(out-in) / 60
	v[FeatureDaysSincePay] = clampNonNegative(daysBetween(pay.LastExecutedEnd, day))
	v[FeatureDaysUntilPay] = clampNonNegative(daysBetween(day, pay.NextEnd))
	v[FeatureOccupation] = float64(OccupationCode(emp.PayType))
	v[FeaturePayRate] = float64(emp.PayRate)
	v[FeatureDayOfWeek] = float64(day.Weekday())
	v[FeatureScheduleDeviation] = v[FeatureClockIn] - scheduledStart

	wd := day.Weekday()
	return Observation{
		Vector:     v,
		IsWeekend:  wd == time.Saturday || wd == time.Sunday,
		EntryID:    entry.TimeEntryID,
		EmployeeID: entry.EmployeeID,
	}, true
}

// Snapshot 转为落库的特征快照
func (o Observation) Snapshot() model.FeatureSnapshot {
	return model.FeatureSnapshot{
		ClockInHour:       o.Vector[FeatureClockIn],
		ClockOutHour:      o.Vector[FeatureClockOut],
		ShiftHours:        o.Vector[FeatureDuration],
		DaysSincePayDay:   o.Vector[FeatureDaysSincePay],
		DaysUntilPayDay:   o.Vector[FeatureDaysUntilPay],
		OccupationCode:    int(o.Vector[FeatureOccupation]),
		PayRate:           int64(o.Vector[FeaturePayRate]),
		DayOfWeek:         int(o.Vector[FeatureDayOfWeek]),
		ScheduleDeviation: o.Vector[FeatureScheduleDeviation],
		IsWeekend:         o.IsWeekend,
	}
}

// OccupationCode 0=年薪/月薪, 1=日薪, 2=时薪
func OccupationCode(payType string) int {
	switch payType {
	case model.PayTypeDaily:
		return 1
	case model.PayTypeHourly:
		return 2
	default:
		return 0
	}
}

// ScheduledStartHour 班表的计划上班小时；无班表或格式错误时返回默认值
func ScheduledStartHour(ws *model.WorkSchedule) float64 {
	if ws == nil {
		return DefaultScheduledStartHour
	}
	h, err := ParseClock(ws.StartTime)
	if err != nil {
		return DefaultScheduledStartHour
	}
	return h
}

// ParseClock 解析 "HH:MM" 或 "HH:MM:SS" 为小数小时
func ParseClock(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("无效的时间格式: %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("无效的小时: %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("无效的分钟: %q", s)
	}
	return float64(h) + float64(m)/60, nil
}

// ── 辅助函数 ──

func minutesSinceMidnight(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween 自然日差 b - a
func daysBetween(a, b time.Time) float64 {
	return dateOnly(b).Sub(dateOnly(a)).Hours() / 24
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
