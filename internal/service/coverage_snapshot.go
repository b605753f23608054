package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
	"github.com/noah-isme/sma-coverage-api/internal/models"
	appErrors "github.com/noah-isme/sma-coverage-api/pkg/errors"
)

type absenceReader interface {
	ListByDate(ctx context.Context, date time.Time) ([]models.Absence, error)
}

type scheduleReader interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error)
}

type substituteReader interface {
	ListActive(ctx context.Context) ([]models.Substitute, error)
	WeeklyLoads(ctx context.Context, weekStart, before time.Time) (map[string]int, error)
}

type coverPoolReader interface {
	ListCoverPool(ctx context.Context) ([]models.Teacher, error)
	WeeklyCoverLoads(ctx context.Context, weekStart, before time.Time) (map[string]int, error)
}

type preferenceReader interface {
	ListByTeachers(ctx context.Context, teacherIDs []string) (map[string]models.TeacherPreference, error)
}

// coverageSnapshot is the database state a run is computed from.
type coverageSnapshot struct {
	input coverage.RunInput
	// skipped lists absences whose teacher has no rows on this weekday.
	skipped []string
}

type snapshotLoader struct {
	absences    absenceReader
	schedules   scheduleReader
	substitutes substituteReader
	teachers    coverPoolReader
	prefs       preferenceReader
	queries     queryObserver
	logger      *zap.Logger
}

type queryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

func (l *snapshotLoader) observe(label string, start time.Time) {
	if l.queries != nil {
		l.queries.ObserveDBQuery("coverage_"+label, time.Since(start))
	}
}

func (l *snapshotLoader) load(ctx context.Context, date time.Time, dayType coverage.DayType) (*coverageSnapshot, error) {
	weekday := strings.ToUpper(date.Weekday().String())

	start := time.Now()
	absences, err := l.absences.ListByDate(ctx, date)
	l.observe("absences", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}

	start = time.Now()
	rows, err := l.schedules.List(ctx, models.ScheduleFilter{DayType: string(dayType)})
	l.observe("schedules", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}
	entries := make([]coverage.ScheduleEntry, 0, len(rows))
	teachesToday := make(map[string]struct{})
	for _, row := range rows {
		if !strings.EqualFold(strings.TrimSpace(row.DayOfWeek), weekday) {
			continue
		}
		teachesToday[row.TeacherID] = struct{}{}
		entries = append(entries, scheduleEntryFromModel(row))
	}

	snapshot := &coverageSnapshot{
		input: coverage.RunInput{
			Date:     date,
			DayType:  dayType,
			Schedule: entries,
		},
	}
	knownTeachers := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		knownTeachers[row.TeacherID] = struct{}{}
	}
	for _, absence := range absences {
		_, today := teachesToday[absence.TeacherID]
		_, known := knownTeachers[absence.TeacherID]
		if !today && known {
			snapshot.skipped = append(snapshot.skipped, absence.ID)
			continue
		}
		snapshot.input.Absences = append(snapshot.input.Absences, absenceFromModel(absence))
	}
	if len(snapshot.skipped) > 0 {
		l.logger.Info("absences with no lessons on weekday skipped",
			zap.String("date", date.Format("2006-01-02")),
			zap.Strings("absence_ids", snapshot.skipped),
		)
	}
	if len(snapshot.input.Absences) == 0 {
		return snapshot, nil
	}

	if snapshot.input.Substitutes, err = l.loadSubstitutes(ctx, date); err != nil {
		return nil, err
	}
	if snapshot.input.Staff, err = l.loadStaff(ctx, date, weekday); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (l *snapshotLoader) loadSubstitutes(ctx context.Context, date time.Time) ([]coverage.ExternalSubstitute, error) {
	start := time.Now()
	subs, err := l.substitutes.ListActive(ctx)
	l.observe("substitutes", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitutes")
	}
	if len(subs) == 0 {
		return nil, nil
	}
	start = time.Now()
	loads, err := l.substitutes.WeeklyLoads(ctx, weekStart(date), date)
	l.observe("weekly_loads", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitute weekly loads")
	}

	out := make([]coverage.ExternalSubstitute, 0, len(subs))
	for _, sub := range subs {
		availability, err := sub.AvailabilityByDay()
		if err != nil {
			l.logger.Warn("substitute availability unreadable, skipping", zap.String("substitute_id", sub.ID), zap.Error(err))
			continue
		}
		out = append(out, coverage.ExternalSubstitute{
			ID:                sub.ID,
			Name:              sub.FullName,
			Specialties:       []string(sub.Specialties),
			Availability:      availability,
			MaxDailyLoad:      sub.MaxDailyLoad,
			MaxWeeklyLoad:     sub.MaxWeeklyLoad,
			CurrentWeeklyLoad: loads[sub.ID],
			SpecialtyOnly:     sub.SpecialtyOnly,
			EmergencyOnly:     sub.EmergencyOnly,
		})
	}
	return out, nil
}

func (l *snapshotLoader) loadStaff(ctx context.Context, date time.Time, weekday string) ([]coverage.InternalStaff, error) {
	start := time.Now()
	teachers, err := l.teachers.ListCoverPool(ctx)
	l.observe("cover_pool", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cover pool")
	}
	if len(teachers) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(teachers))
	for _, t := range teachers {
		ids = append(ids, t.ID)
	}
	prefs := map[string]models.TeacherPreference{}
	if l.prefs != nil {
		start = time.Now()
		prefs, err = l.prefs.ListByTeachers(ctx, ids)
		l.observe("preferences", start)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher preferences")
		}
	}
	start = time.Now()
	loads, err := l.teachers.WeeklyCoverLoads(ctx, weekStart(date), date)
	l.observe("teacher_weekly_loads", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher weekly cover loads")
	}

	out := make([]coverage.InternalStaff, 0, len(teachers))
	for _, t := range teachers {
		staff := coverage.InternalStaff{
			ID:                t.ID,
			Name:              t.FullName,
			Specialties:       []string(t.Specialties),
			CurrentWeeklyLoad: loads[t.ID],
			EmergencyOnly:     t.EmergencyOnly,
		}
		if pref, ok := prefs[t.ID]; ok {
			staff.MaxDailyLoad = pref.MaxLoadPerDay
			staff.MaxWeeklyLoad = pref.MaxLoadPerWeek
			staff.Unavailable = pref.BlockedPeriods(weekday)
		}
		out = append(out, staff)
	}
	return out, nil
}

func scheduleEntryFromModel(row models.Schedule) coverage.ScheduleEntry {
	dayType, _ := coverage.ParseDayType(row.DayType)
	if row.DayType == "" {
		dayType = ""
	}
	return coverage.ScheduleEntry{
		OwnerID:    row.TeacherID,
		Period:     coverage.Period{Ordinal: row.Period, Label: row.PeriodLabel},
		DayOfWeek:  strings.ToUpper(row.DayOfWeek),
		DayType:    dayType,
		Subject:    row.SubjectName,
		Room:       row.Room,
		IsTeaching: row.IsTeaching,
	}
}

func absenceFromModel(a models.Absence) coverage.Absence {
	out := coverage.Absence{
		ID:        a.ID,
		TeacherID: a.TeacherID,
		Date:      a.AbsenceDate,
		Status:    coverage.AbsenceStatusPending,
	}
	if dayType, ok := coverage.ParseDayType(a.DayType); ok {
		out.DayType = dayType
	}
	for _, p := range a.PeriodsNeeded {
		out.PeriodsNeeded = append(out.PeriodsNeeded, int(p))
	}
	return out
}

// weekStart returns the Monday of date's week.
func weekStart(date time.Time) time.Time {
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -offset)
}
