package detector

import (
	"fmt"
	"math"

	"payguard/backend/internal/model"
)

// DefaultThreshold 判定为异常候选的最低分
const DefaultThreshold = 0.55

// 严重程度分档（按原始分）
const (
	criticalScore = 0.85
	highScore     = 0.75
	mediumScore   = 0.65
)

// 信誉分参数
const (
	ReputationDefault = 75
	ReputationMin     = 0
	ReputationMax     = 100
	ReputationPenalty = 8
	ReputationRecover = 2

	// ReputationLowThreshold 低于该值自动触发资金回补
	ReputationLowThreshold = 40
	// ReputationHighThreshold 保留的高信誉阈值，决策不读取该值
	ReputationHighThreshold = 60
)

// Severity 按原始分划分严重程度
func Severity(score float64) string {
	switch {
	case score >= criticalScore:
		return model.SeverityCritical
	case score >= highScore:
		return model.SeverityHigh
	case score >= mediumScore:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// DecideAction 信誉分 < 40 自动回补，否则人工复核
func DecideAction(reputation int) string {
	if reputation < ReputationLowThreshold {
		return model.ActionAutoRebalance
	}
	return model.ActionManualReview
}

// StatusForAction 新异常记录的初始状态
func StatusForAction(action string) string {
	if action == model.ActionAutoRebalance {
		return model.AnomalyStatusRebalanceTriggered
	}
	return model.AnomalyStatusPendingReview
}

// Penalize 扣分，下限 0
func Penalize(score int) int {
	return clampReputation(score - ReputationPenalty)
}

// Recover 恢复，上限 100
func Recover(score int) int {
	return clampReputation(score + ReputationRecover)
}

func clampReputation(v int) int {
	if v < ReputationMin {
		return ReputationMin
	}
	if v > ReputationMax {
		return ReputationMax
	}
	return v
}

// RoundScore 保留 3 位小数
func RoundScore(score float64) float64 {
	return math.Round(score*1000) / 1000
}

// Reasons 按固定顺序生成可读原因；无规则命中时退化为统计离群描述
func Reasons(o Observation, score float64) []string {
	v := o.Vector
	var reasons []string

	duration := v[FeatureDuration]
	if duration > 12 {
		reasons = append(reasons, "unusually long shift")
	}
	if duration > 0 && duration < 1 {
		reasons = append(reasons, "suspiciously short shift")
	}
	if in := v[FeatureClockIn]; in < 5 || in > 22 {
		reasons = append(reasons, "unusual clock-in time")
	}
	if o.IsWeekend {
		reasons = append(reasons, "entry logged on a weekend")
	}
	if v[FeatureDaysSincePay] <= 1 {
		reasons = append(reasons, "entry very close to pay day")
	}
	if v[FeatureDaysUntilPay] <= 1 {
		reasons = append(reasons, "entry very close to upcoming pay day")
	}
	if dev := v[FeatureScheduleDeviation]; math.Abs(dev) > 2 {
		dir := "late"
		if dev < 0 {
			dir = "early"
		}
		reasons = append(reasons, fmt.Sprintf("%s by %.1fh vs schedule", dir, math.Abs(dev)))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, fmt.Sprintf("statistical outlier, score=%.3f", score))
	}
	return reasons
}
