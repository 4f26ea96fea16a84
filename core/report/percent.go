package report

import (
	"math"
	"strconv"
)

// Ratio returns round(100 * part / total), or 0 when total == 0.
// Halves round away from zero. Every ratio in reporting goes through here;
// no call site divides on its own.
func Ratio(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

// Percent formats Ratio with a "%" suffix. Percent(x, 0) is "0%" for any x.
func Percent(part, total int) string {
	return strconv.Itoa(Ratio(part, total)) + "%"
}

// Avg returns sum/count rounded to the nearest integer, or 0 when count == 0.
func Avg(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Round(float64(sum) / float64(count)))
}
