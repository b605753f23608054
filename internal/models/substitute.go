package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Substitute is an external cover teacher on the district roster.
// Availability is a JSON object keyed by weekday name listing period ordinals,
// e.g. {"MONDAY": [1, 2, 3]}.
type Substitute struct {
	ID            string         `db:"id" json:"id"`
	FullName      string         `db:"full_name" json:"full_name"`
	Email         string         `db:"email" json:"email"`
	Phone         *string        `db:"phone" json:"phone,omitempty"`
	Specialties   pq.StringArray `db:"specialties" json:"specialties"`
	Availability  types.JSONText `db:"availability" json:"availability"`
	MaxDailyLoad  int            `db:"max_daily_load" json:"max_daily_load"`
	MaxWeeklyLoad int            `db:"max_weekly_load" json:"max_weekly_load"`
	SpecialtyOnly bool           `db:"specialty_only" json:"specialty_only"`
	EmergencyOnly bool           `db:"emergency_only" json:"emergency_only"`
	Active        bool           `db:"active" json:"active"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// AvailabilityByDay decodes the availability document.
func (s Substitute) AvailabilityByDay() (map[string][]int, error) {
	out := map[string][]int{}
	if len(s.Availability) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(s.Availability, &out); err != nil {
		return nil, fmt.Errorf("decode availability for substitute %s: %w", s.ID, err)
	}
	return out, nil
}

// SubstituteWeeklyLoad is the number of cover periods a substitute already
// holds in the week before the run date.
type SubstituteWeeklyLoad struct {
	SubstituteID string `db:"substitute_id" json:"substitute_id"`
	Periods      int    `db:"periods" json:"periods"`
}
