package clock

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Layout 是排期时间的规范格式：本地时间、秒级精度、无时区后缀。
// 所有 scheduled_time 的比较都是对该格式字符串的字典序比较。
const Layout = "2006-01-02T15:04:05"

// minuteLayout 对应 HTML datetime-local 控件默认提交的分钟精度格式。
const minuteLayout = "2006-01-02T15:04"

// ErrInvalidTime 表示输入无法解析为规范时间。
var ErrInvalidTime = errors.New("invalid canonical time")

// Clock 提供当前时间，便于在测试中替换。
type Clock interface {
	Now() time.Time
}

// System 读取系统本地时钟。
type System struct{}

// Now 返回当前本地时间。
func (System) Now() time.Time {
	return time.Now()
}

// Fixed 是可手动推进的时钟，供测试与调试使用。
type Fixed struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFixed 以给定时间创建 Fixed 时钟。
func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

// Now 返回当前设定的时间。
func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

// Set 将时钟调整到指定时间。
func (f *Fixed) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance 将时钟向前推进 d。
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Format 将时间按规范格式输出，亚秒部分被丢弃。
func Format(t time.Time) string {
	return t.Format(Layout)
}

// NowString 返回 c 当前时间的规范字符串。
func NowString(c Clock) string {
	return Format(c.Now())
}

// Parse 按本地时区解析规范格式字符串。
func Parse(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(Layout, value, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return parsed, nil
}

// MustParse 用于测试与常量初始化，解析失败时 panic。
func MustParse(value string) time.Time {
	parsed, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return parsed
}

// Normalize 校验客户端提交的排期时间并转换为规范格式。
// 接受规范格式与 datetime-local 的分钟精度格式，其他格式一律拒绝。
func Normalize(raw string) (string, error) {
	return normalizeIn(raw, time.Local)
}

// normalizeIn 在 loc 中解析 raw。夏令时跳变区间内不存在的本地时间
// 会被 time 包平移，这类输入格式化后与原值不一致，直接拒绝。
func normalizeIn(raw string, loc *time.Location) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrInvalidTime
	}

	for _, layout := range []string{Layout, minuteLayout} {
		if len(value) != len(layout) {
			continue
		}
		parsed, err := time.ParseInLocation(layout, value, loc)
		if err != nil {
			continue
		}
		canonical := Format(parsed)
		if !strings.HasPrefix(canonical, value) {
			return "", ErrInvalidTime
		}
		return canonical, nil
	}

	return "", ErrInvalidTime
}
