package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TeacherUnavailableSlot describes a blocked window. TimeRange holds a single
// period ("3") or an inclusive range ("2-4").
type TeacherUnavailableSlot struct {
	DayOfWeek string `json:"day_of_week"`
	TimeRange string `json:"time_range"`
}

// Periods expands TimeRange into period ordinals.
func (s TeacherUnavailableSlot) Periods() ([]int, error) {
	return ParseTimeRange(s.TimeRange)
}

// TeacherPreference caps how much cover a teacher takes and when they are off
// limits. Zero loads mean no cap.
type TeacherPreference struct {
	ID             string         `db:"id" json:"id"`
	TeacherID      string         `db:"teacher_id" json:"teacher_id"`
	MaxLoadPerDay  int            `db:"max_load_per_day" json:"max_load_per_day"`
	MaxLoadPerWeek int            `db:"max_load_per_week" json:"max_load_per_week"`
	Unavailable    types.JSONText `db:"unavailable" json:"unavailable"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// Windows decodes the stored unavailable windows.
func (p TeacherPreference) Windows() ([]TeacherUnavailableSlot, error) {
	if len(p.Unavailable) == 0 {
		return nil, nil
	}
	var windows []TeacherUnavailableSlot
	if err := json.Unmarshal(p.Unavailable, &windows); err != nil {
		return nil, fmt.Errorf("decode unavailable windows: %w", err)
	}
	return windows, nil
}

// BlockedPeriods returns the sorted periods blocked on weekday. Undecodable
// windows block nothing.
func (p TeacherPreference) BlockedPeriods(weekday string) []int {
	windows, err := p.Windows()
	if err != nil {
		return nil
	}
	seen := make(map[int]struct{})
	var out []int
	for _, w := range windows {
		if !strings.EqualFold(strings.TrimSpace(w.DayOfWeek), weekday) {
			continue
		}
		periods, err := w.Periods()
		if err != nil {
			continue
		}
		for _, period := range periods {
			if _, dup := seen[period]; !dup {
				seen[period] = struct{}{}
				out = append(out, period)
			}
		}
	}
	sort.Ints(out)
	return out
}

// ParseTimeRange reads "3" or "2-4" into ordinals. Periods start at 1.
func ParseTimeRange(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	startRaw, endRaw, isRange := strings.Cut(raw, "-")
	start, err := parseOrdinal(startRaw)
	if err != nil {
		return nil, fmt.Errorf("time range %q: %w", raw, err)
	}
	end := start
	if isRange {
		if end, err = parseOrdinal(endRaw); err != nil {
			return nil, fmt.Errorf("time range %q: %w", raw, err)
		}
	}
	if end < start {
		return nil, fmt.Errorf("time range %q ends before it starts", raw)
	}
	periods := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		periods = append(periods, p)
	}
	return periods, nil
}

func parseOrdinal(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return 0, fmt.Errorf("period %q is not a positive number", strings.TrimSpace(raw))
	}
	return value, nil
}
