package report

import (
	"math"
	"strconv"
	"strings"
)

// ComputeTimeSaved returns max(0, estimated-actual) rounded to the nearest
// quarter and formatted with two decimals. Blank or unparsable input counts
// as zero.
func ComputeTimeSaved(estimated, actual string) string {
	saved := math.Max(0, parseHours(estimated)-parseHours(actual))
	return strconv.FormatFloat(math.Round(saved*4)/4, 'f', 2, 64)
}

func parseHours(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
