package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ── PostgreSQL TEXT[] 自定义类型 ──

// StringArray 对应 PostgreSQL TEXT[] 类型，实现 GORM Scanner/Valuer 接口。
type StringArray []string

// Scan 将 PostgreSQL 返回的 {"a","b"} 文本解析为 []string。
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	var s string
	switch v := src.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return fmt.Errorf("StringArray.Scan: unsupported type %T", src)
	}
	*a = parsePGTextArray(s)
	return nil
}

// Value 将 []string 序列化为 PostgreSQL {"a","b"} 文本。
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	parts := make([]string, len(a))
	for i, s := range a {
		s = strings.ReplaceAll(s, `\`, `\\`)
		s = strings.ReplaceAll(s, `"`, `\"`)
		parts[i] = `"` + s + `"`
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// parsePGTextArray 解析一维 TEXT[] 字面量（支持引号与反斜杠转义）
func parsePGTextArray(s string) StringArray {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	if s == "" {
		return StringArray{}
	}

	var (
		out     StringArray
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	out = append(out, cur.String())
	return out
}

// ── JSONB 特征快照 ──

// FeatureSnapshot 检测时的特征快照（含不参与打分的周末标记）
type FeatureSnapshot struct {
	ClockInHour       float64 `json:"clock_in_hour"`
	ClockOutHour      float64 `json:"clock_out_hour"`
	ShiftHours        float64 `json:"shift_hours"`
	DaysSincePayDay   float64 `json:"days_since_pay_day"`
	DaysUntilPayDay   float64 `json:"days_until_pay_day"`
	OccupationCode    int     `json:"occupation_code"`
	PayRate           int64   `json:"pay_rate"`
	DayOfWeek         int     `json:"day_of_week"`
	ScheduleDeviation float64 `json:"schedule_deviation"`
	IsWeekend         bool    `json:"is_weekend"`
}

// Scan 从 JSONB 读取
func (f *FeatureSnapshot) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*f = FeatureSnapshot{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("FeatureSnapshot.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, f)
}

// Value 序列化为 JSONB
func (f FeatureSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// BaseModel 通用审计字段
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// VersionedModel 支持乐观锁的模型
type VersionedModel struct {
	BaseModel
	Version int `gorm:"not null;default:1" json:"version"`
}
