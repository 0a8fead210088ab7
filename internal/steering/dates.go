package steering

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	isoDateLayout     = "2006-01-02"
	displayDateLayout = "02/01/2006"
)

// 时段起止时间
const (
	dayStart = " 00:00"
	dayEnd   = " 23:59"
)

// ParseDate 把 DD/MM/YYYY 转为 YYYY-MM-DD，日和月可以不补零
func ParseDate(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return "", formatErrorf(s, "invalid date, expected DD/MM/YYYY")
	}

	nums := make([]int, 3)
	for i, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return "", formatErrorf(s, "invalid date, expected DD/MM/YYYY")
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return "", &FormatError{Message: "invalid date, expected DD/MM/YYYY", Value: s, Err: err}
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if len(parts[2]) != 4 {
		return "", formatErrorf(s, "invalid date, year must have 4 digits")
	}

	// time.Date 会把 31/02 归一化到 3 月，比对后即可发现非法日期
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", formatErrorf(s, "invalid calendar date")
	}

	return t.Format(isoDateLayout), nil
}

// FormatDateForDisplay 把 YYYY-MM-DD 或 YYYY-MM-DD HH:mm 转为 DD/MM/YYYY
func FormatDateForDisplay(s string) (string, error) {
	datePart, _, _ := strings.Cut(strings.TrimSpace(s), " ")
	t, err := time.Parse(isoDateLayout, datePart)
	if err != nil {
		return "", &FormatError{Message: "invalid date, expected YYYY-MM-DD", Value: s, Err: err}
	}
	return t.Format(displayDateLayout), nil
}

// dayLayouts ParseDay 依次尝试的格式
var dayLayouts = []string{
	isoDateLayout,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDay 解析日期或日期时间，只保留日期部分（UTC 零点）
//
// 斜杠格式按 DD/MM/YYYY 处理。
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, formatErrorf(s, "empty date")
	}

	if strings.Contains(s, "/") {
		iso, err := ParseDate(s)
		if err != nil {
			return time.Time{}, err
		}
		s = iso
	}

	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, formatErrorf(s, "unrecognized date")
}

// steerWindow 返回整天的 steer_from / steer_to
func steerWindow(from, to string) (string, string) {
	return from + dayStart, to + dayEnd
}

// dateSpan 解析并校验时段的起止日期
func dateSpan(p Period) (string, string, error) {
	from, err := ParseDate(p.Start)
	if err != nil {
		return "", "", err
	}
	to, err := ParseDate(p.End)
	if err != nil {
		return "", "", err
	}
	// ISO 日期可直接按字符串比较
	if to < from {
		return "", "", &FormatError{
			Message: fmt.Sprintf("end date %s is before start date %s", p.End, p.Start),
		}
	}
	return from, to, nil
}
