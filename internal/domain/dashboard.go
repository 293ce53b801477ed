package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Stats holds the opaque counters returned by the dashboard stats endpoint.
type Stats map[string]any

// StatEntry is one counter ready for display.
type StatEntry struct {
	Key   string
	Label string
	Value any
}

// Entries returns the counters sorted by key with humanised labels.
func (s Stats) Entries() []StatEntry {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]StatEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, StatEntry{Key: k, Label: HumanizeKey(k), Value: s[k]})
	}
	return out
}

// HumanizeKey turns "totalUsers" or "pending_count" into "Total Users" / "Pending Count".
func HumanizeKey(key string) string {
	var b strings.Builder
	prevLower := false
	upperNext := true
	for _, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ':
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			upperNext = true
			prevLower = false
			continue
		case unicode.IsUpper(r) && prevLower:
			b.WriteByte(' ')
			upperNext = true
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}

// MonthCount is one bar of the monthly chart.
type MonthCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// StatusCount is one bar of the status chart.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// ChartData is the payload of the dashboard charts endpoint.
type ChartData struct {
	MonthlyCounts []MonthCount  `json:"monthlyCounts"`
	StatusCounts  []StatusCount `json:"statusCounts"`
}

// UnmarshalJSON accepts monthlyCounts as a number array or as {month, count}
// objects, and statusCounts as a map or as {status, count} objects.
func (c *ChartData) UnmarshalJSON(b []byte) error {
	var raw struct {
		MonthlyCounts json.RawMessage `json:"monthlyCounts"`
		StatusCounts  json.RawMessage `json:"statusCounts"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	monthly, err := decodeMonthly(raw.MonthlyCounts)
	if err != nil {
		return fmt.Errorf("monthlyCounts: %w", err)
	}
	status, err := decodeStatus(raw.StatusCounts)
	if err != nil {
		return fmt.Errorf("statusCounts: %w", err)
	}

	c.MonthlyCounts = monthly
	c.StatusCounts = status
	return nil
}

// MaxMonthly returns the largest monthly count, or 0.
func (c ChartData) MaxMonthly() int64 {
	var m int64
	for _, v := range c.MonthlyCounts {
		m = max(m, v.Count)
	}
	return m
}

// MaxStatus returns the largest status count, or 0.
func (c ChartData) MaxStatus() int64 {
	var m int64
	for _, v := range c.StatusCounts {
		m = max(m, v.Count)
	}
	return m
}

func decodeMonthly(b json.RawMessage) ([]MonthCount, error) {
	if isNullJSON(b) {
		return nil, nil
	}

	var nums []json.Number
	if err := json.Unmarshal(b, &nums); err == nil {
		out := make([]MonthCount, 0, len(nums))
		for i, n := range nums {
			v, err := numberToInt64(n)
			if err != nil {
				return nil, err
			}
			out = append(out, MonthCount{Label: monthLabel(i + 1), Count: v})
		}
		return out, nil
	}

	var objs []struct {
		Month json.RawMessage `json:"month"`
		Count json.Number     `json:"count"`
	}
	if err := json.Unmarshal(b, &objs); err != nil {
		return nil, err
	}
	out := make([]MonthCount, 0, len(objs))
	for i, o := range objs {
		v, err := numberToInt64(o.Count)
		if err != nil {
			return nil, err
		}
		out = append(out, MonthCount{Label: monthFieldLabel(o.Month, i+1), Count: v})
	}
	return out, nil
}

func decodeStatus(b json.RawMessage) ([]StatusCount, error) {
	if isNullJSON(b) {
		return nil, nil
	}

	var m map[string]json.Number
	if err := json.Unmarshal(b, &m); err == nil {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]StatusCount, 0, len(keys))
		for _, k := range keys {
			v, err := numberToInt64(m[k])
			if err != nil {
				return nil, err
			}
			out = append(out, StatusCount{Status: k, Count: v})
		}
		return out, nil
	}

	var objs []struct {
		Status string      `json:"status"`
		Count  json.Number `json:"count"`
	}
	if err := json.Unmarshal(b, &objs); err != nil {
		return nil, err
	}
	out := make([]StatusCount, 0, len(objs))
	for _, o := range objs {
		v, err := numberToInt64(o.Count)
		if err != nil {
			return nil, err
		}
		out = append(out, StatusCount{Status: o.Status, Count: v})
	}
	return out, nil
}

func monthFieldLabel(raw json.RawMessage, fallback int) string {
	if isNullJSON(raw) {
		return monthLabel(fallback)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := strconv.Atoi(n.String()); err == nil {
			return monthLabel(i)
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if i, err := strconv.Atoi(s); err == nil {
			return monthLabel(i)
		}
		return s
	}
	return monthLabel(fallback)
}

func monthLabel(m int) string {
	if m < 1 || m > 12 {
		return strconv.Itoa(m)
	}
	return time.Month(m).String()[:3]
}

func numberToInt64(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", n)
	}
	return int64(math.Round(f)), nil
}

func isNullJSON(b json.RawMessage) bool {
	t := bytes.TrimSpace(b)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
