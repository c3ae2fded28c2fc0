package pipeline

import (
	"fmt"
	"math"
)

// DefaultTankHeightCM 水箱高度（传感器在水箱顶部）
const DefaultTankHeightCM = 20.0

// ToWaterLevel 距离换算水位百分比：clamp((h - d) / h * 100, 0, 100)
// 距离越小水越满；d >= h 为 0，d <= 0 为 100
// tankHeight 非正或非有限值时按默认高度计算
func ToWaterLevel(distance, tankHeight float64) float64 {
	if tankHeight <= 0 || math.IsNaN(tankHeight) || math.IsInf(tankHeight, 0) {
		tankHeight = DefaultTankHeightCM
	}
	if math.IsNaN(distance) {
		distance = 0
	}

	level := (tankHeight - distance) / tankHeight * 100
	return math.Max(0, math.Min(100, level))
}

// formatLevel 取整显示（四舍五入，半数远离零）
func formatLevel(level float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(level))
}
