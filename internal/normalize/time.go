package normalize

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	clockRe    = regexp.MustCompile(`^(上午|早上|中午|下午|晚上)?\s*(\d{1,2}):(\d{2})$`)
	cnOClockRe = regexp.MustCompile(`^(上午|早上|中午|下午|晚上)?\s*(\d{1,2}|[零一二两三四五六七八九十]{1,3})点(?:(半)|(\d{1,2})分?)?$`)
)

var cnDigits = map[rune]int{
	'零': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

// NormalizeTime converts "下午3点", "3点半", or "9:05" to 24-hour HH:MM.
// Unrecognized input is returned unchanged with ok=false.
func NormalizeTime(raw string) (string, bool) {
	s := fold(raw)

	var period string
	var hour, minute int

	switch m := clockRe.FindStringSubmatch(s); {
	case m != nil:
		period, hour, minute = m[1], atoi(m[2]), atoi(m[3])
	default:
		m = cnOClockRe.FindStringSubmatch(s)
		if m == nil {
			return raw, false
		}
		h, ok := parseHour(m[2])
		if !ok {
			return raw, false
		}
		period, hour = m[1], h
		switch {
		case m[3] != "":
			minute = 30
		case m[4] != "":
			minute = atoi(m[4])
		}
	}

	hour = applyPeriod(period, hour)
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return raw, false
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), true
}

func applyPeriod(period string, hour int) int {
	switch period {
	case "上午", "早上":
		if hour == 12 {
			return 0
		}
	case "下午", "晚上", "中午":
		if hour < 12 {
			return hour + 12
		}
	}
	return hour
}

// parseHour accepts ASCII digits or a Chinese numeral up to 二十四.
func parseHour(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	runes := []rune(s)
	switch len(runes) {
	case 1:
		if runes[0] == '十' {
			return 10, true
		}
		n, ok := cnDigits[runes[0]]
		return n, ok
	case 2:
		if runes[0] == '十' {
			n, ok := cnDigits[runes[1]]
			return 10 + n, ok
		}
		if runes[1] == '十' {
			n, ok := cnDigits[runes[0]]
			return n * 10, ok
		}
	case 3:
		if runes[1] == '十' {
			tens, ok1 := cnDigits[runes[0]]
			ones, ok2 := cnDigits[runes[2]]
			return tens*10 + ones, ok1 && ok2
		}
	}
	return 0, false
}
