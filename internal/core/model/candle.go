// Package model 定义回测器中使用的核心数据结构。
// 包含 K 线、均线点、交叉事件、仓位、成交和组合结果等类型。
package model

import (
	"fmt"
	"time"
)

// Candle 单根 K 线（不可变）
// 同一序列按 OpenTime 升序排列，不允许重复或乱序
type Candle struct {
	// OpenTime 开盘时间
	OpenTime time.Time `json:"open_time"`
	// CloseTime 收盘时间
	CloseTime time.Time `json:"close_time"`
	// Open 开盘价
	Open float64 `json:"open"`
	// High 最高价
	High float64 `json:"high"`
	// Low 最低价
	Low float64 `json:"low"`
	// Close 收盘价
	Close float64 `json:"close"`
	// Volume 成交量
	Volume float64 `json:"volume"`
}

// Closes 提取收盘价序列
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Combo 均线组合（短周期, 长周期）
type Combo struct {
	// Short 短周期
	Short int `json:"short" yaml:"short"`
	// Long 长周期
	Long int `json:"long" yaml:"long"`
}

// String 返回 "8x21" 形式的组合标识
func (c Combo) String() string {
	return fmt.Sprintf("%dx%d", c.Short, c.Long)
}

// MAPoint 某根 K 线上的短/长均线值
// 历史不足时 Defined 为 false，此时 Short/Long 无意义
type MAPoint struct {
	// Index K 线下标
	Index int
	// Short 短周期均线
	Short float64
	// Long 长周期均线
	Long float64
	// Defined 两条均线是否都已有足够历史
	Defined bool
}

// CrossKind 交叉类型
type CrossKind int

const (
	// CrossNone 无交叉
	CrossNone CrossKind = iota
	// CrossGolden 金叉：短均线由 <= 长均线变为 > 长均线
	CrossGolden
	// CrossDeath 死叉：短均线由 >= 长均线变为 < 长均线
	CrossDeath
)

// String 返回交叉类型名称
func (k CrossKind) String() string {
	switch k {
	case CrossGolden:
		return "golden_cross"
	case CrossDeath:
		return "death_cross"
	default:
		return "none"
	}
}

// CrossEvent 某根 K 线上的交叉事件
type CrossEvent struct {
	// Index K 线下标
	Index int
	// Kind 交叉类型
	Kind CrossKind
}
