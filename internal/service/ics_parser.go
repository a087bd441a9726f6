package service

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ── ICS 班表解析器 ──────────────────────────────────────────
//
// 职责：从排班日历（RFC 5545）推导员工的计划上下班时间。
//
// 规则：
//   - 每个 VEVENT 的 DTSTART/DTEND 给出一组 (上班, 下班) 时刻
//   - 带 RRULE 的事件按重复次数计权（COUNT 或 UNTIL 推算），无 RRULE 计 1 次
//   - 取出现次数最多的一组；并列时取上班时间更早者
//   - EXDATE 排除的日期不计入
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
	// 无 COUNT/UNTIL 的无限重复事件，按一个季度的周数计权
	icsOpenEndedWeeks = 13
)

// parsedShift ICS 中的一组班次时刻
type parsedShift struct {
	StartTime string // HH:MM
	EndTime   string
	Weight    int
}

// ScheduleShift ICS 推导出的班表
type ScheduleShift struct {
	StartTime  string
	EndTime    string
	EventCount int
}

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// ParseScheduleICS 解析排班日历并返回最常见的上下班时刻
// loc 为员工所在时区，UTC 时间戳会先换算到该时区
func ParseScheduleICS(reader io.Reader, loc *time.Location) (*ScheduleShift, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	// 阶段 1: 解析所有 VEVENT
	var shifts []parsedShift
	events := 0
	for _, comp := range cal.Events() {
		s, ok := parseShiftEvent(comp, loc)
		if !ok {
			continue
		}
		events++
		shifts = append(shifts, s)
	}
	if len(shifts) == 0 {
		return nil, fmt.Errorf("ICS 中没有可用的班次事件")
	}

	// 阶段 2: 合并相同时刻的班次并选出最常见的一组
	best := mostFrequentShift(shifts)
	return &ScheduleShift{
		StartTime:  best.StartTime,
		EndTime:    best.EndTime,
		EventCount: events,
	}, nil
}

// parseShiftEvent 解析单个 VEVENT
func parseShiftEvent(evt *ics.VEvent, loc *time.Location) (parsedShift, bool) {
	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return parsedShift{}, false
	}
	dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		durProp := evt.GetProperty(ics.ComponentPropertyDuration)
		if durProp == nil {
			return parsedShift{}, false
		}
		d, derr := parseICSDuration(durProp.Value)
		if derr != nil {
			return parsedShift{}, false
		}
		dtEnd = dtStart.Add(d)
	}
	// 全天事件不是班次
	if !dtEnd.After(dtStart) || dtEnd.Sub(dtStart) >= 24*time.Hour {
		return parsedShift{}, false
	}

	weight := occurrenceCount(evt, dtStart, loc)
	if weight == 0 {
		return parsedShift{}, false
	}

	return parsedShift{
		StartTime: dtStart.Format("15:04"),
		EndTime:   dtEnd.Format("15:04"),
		Weight:    weight,
	}, true
}

// occurrenceCount 按 RRULE / EXDATE 计算事件的有效发生次数
func occurrenceCount(evt *ics.VEvent, dtStart time.Time, loc *time.Location) int {
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	exDates := parseExDates(evt, loc)
	if rruleProp == nil {
		if exDates[dtStart.Format("20060102")] {
			return 0
		}
		return 1
	}

	rule := parseRRule(rruleProp.Value)
	step := func(t time.Time) time.Time { return t.AddDate(0, 0, 7*rule.interval) }
	switch rule.freq {
	case "DAILY":
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, rule.interval) }
	case "WEEKLY":
	default:
		return 1
	}

	limit := rule.count
	if limit == 0 && rule.until.IsZero() {
		limit = icsOpenEndedWeeks
		if rule.freq == "DAILY" {
			limit = icsOpenEndedWeeks * 7
		}
	}

	n := 0
	current := dtStart
	for i := 0; ; i++ {
		if limit > 0 && i >= limit {
			break
		}
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if !exDates[current.Format("20060102")] {
			n++
		}
		current = step(current)
	}
	return n
}

// mostFrequentShift 合并相同 (上班, 下班) 的权重并取最大者
func mostFrequentShift(shifts []parsedShift) parsedShift {
	type key struct{ start, end string }
	weights := make(map[key]int)
	for _, s := range shifts {
		weights[key{s.StartTime, s.EndTime}] += s.Weight
	}

	merged := make([]parsedShift, 0, len(weights))
	for k, w := range weights {
		merged = append(merged, parsedShift{StartTime: k.start, EndTime: k.end, Weight: w})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Weight != merged[j].Weight {
			return merged[i].Weight > merged[j].Weight
		}
		if merged[i].StartTime != merged[j].StartTime {
			return merged[i].StartTime < merged[j].StartTime
		}
		return merged[i].EndTime < merged[j].EndTime
	})
	return merged[0]
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
			}
			r.until = t
		}
	}
	if r.interval < 1 {
		r.interval = 1
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			t, err := time.Parse("20060102T150405Z", v)
			if err != nil {
				t, err = time.Parse("20060102T150405", v)
				if err != nil {
					t, err = time.Parse("20060102", v)
				}
			}
			if err == nil {
				exDates[t.In(loc).Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDuration 解析 PT8H30M 形式的时长（仅支持时分秒）
func parseICSDuration(v string) (time.Duration, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if !strings.HasPrefix(v, "PT") {
		return 0, fmt.Errorf("不支持的 DURATION: %s", v)
	}
	return time.ParseDuration(strings.ToLower(strings.TrimPrefix(v, "PT")))
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}

	// 检查 TZID 参数
	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range formats {
		if t, err := time.Parse(layout, val); err == nil {
			if strings.HasSuffix(layout, "Z") {
				return t.In(loc), nil
			}
			if tzid != "" {
				if tzLoc, err := time.LoadLocation(tzid); err == nil {
					return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
				}
			}
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
