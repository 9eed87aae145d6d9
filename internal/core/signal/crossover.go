// Package signal 实现均线金叉/死叉检测。
package signal

import "ma-crossover-backtester/internal/core/model"

// Detect 对每根 K 线判定交叉类型
// 返回与 points 等长的事件序列，下标 0 恒为 CrossNone。
// 相邻两根 K 线的均线都有定义时才比较 diff = short - long：
//   - 金叉: diff(t-1) <= 0 且 diff(t) > 0
//   - 死叉: diff(t-1) >= 0 且 diff(t) < 0
func Detect(points []model.MAPoint) []model.CrossEvent {
	events := make([]model.CrossEvent, len(points))
	for i := range points {
		events[i] = model.CrossEvent{Index: i, Kind: Classify(points, i)}
	}
	return events
}

// Classify 判定下标 i 处（相对 i-1）的交叉类型
func Classify(points []model.MAPoint, i int) model.CrossKind {
	if i <= 0 || i >= len(points) {
		return model.CrossNone
	}
	prev, cur := points[i-1], points[i]
	if !prev.Defined || !cur.Defined {
		return model.CrossNone
	}

	prevDiff := prev.Short - prev.Long
	curDiff := cur.Short - cur.Long

	switch {
	case prevDiff <= 0 && curDiff > 0:
		return model.CrossGolden
	case prevDiff >= 0 && curDiff < 0:
		return model.CrossDeath
	default:
		return model.CrossNone
	}
}
