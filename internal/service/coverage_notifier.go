package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/dto"
	"github.com/noah-isme/sma-coverage-api/pkg/jobs"
)

// Notification job types published after a commit.
const (
	JobCoverageAssignment = "coverage.assignment"
	JobCoverageEscalation = "coverage.escalation"
	JobCoverageSummary    = "coverage.summary"
)

// NotificationSender delivers coverage notices to people.
type NotificationSender interface {
	SendAssignment(ctx context.Context, notice dto.CoverageAssignmentNotice) error
	SendEscalation(ctx context.Context, notice dto.CoverageEscalationNotice) error
	SendSummary(ctx context.Context, notice dto.CoverageSummaryNotice) error
}

// LogNotificationSender writes notices to the log. It is the default until a
// messaging channel is configured.
type LogNotificationSender struct {
	logger *zap.Logger
}

// NewLogNotificationSender constructs a LogNotificationSender.
func NewLogNotificationSender(logger *zap.Logger) *LogNotificationSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotificationSender{logger: logger}
}

// SendAssignment logs a cover assignment.
func (s *LogNotificationSender) SendAssignment(_ context.Context, n dto.CoverageAssignmentNotice) error {
	s.logger.Info("cover assigned",
		zap.String("date", n.Date),
		zap.String("candidate_id", n.CandidateID),
		zap.String("candidate_kind", n.CandidateKind),
		zap.String("period", n.Period),
		zap.String("subject", n.Subject),
		zap.String("room", n.Room),
		zap.String("absent_teacher_id", n.TeacherID),
	)
	return nil
}

// SendEscalation logs an uncovered period for administrators.
func (s *LogNotificationSender) SendEscalation(_ context.Context, n dto.CoverageEscalationNotice) error {
	s.logger.Warn("period left uncovered",
		zap.String("date", n.Date),
		zap.String("absence_id", n.AbsenceID),
		zap.String("teacher_id", n.TeacherID),
		zap.String("period", n.Period),
		zap.String("subject", n.Subject),
	)
	return nil
}

// SendSummary logs the end-of-run digest.
func (s *LogNotificationSender) SendSummary(_ context.Context, n dto.CoverageSummaryNotice) error {
	s.logger.Info("coverage summary",
		zap.String("date", n.Date),
		zap.String("day_type", n.DayType),
		zap.String("run_id", n.RunID),
		zap.Int("periods_needed", n.Metrics.TotalPeriodsNeeded),
		zap.Int("periods_covered", n.Metrics.TotalPeriodsCovered),
		zap.Float64("coverage_rate", n.Metrics.CoverageRate),
	)
	return nil
}

// CoverageNotificationWorker dispatches queued coverage notices.
type CoverageNotificationWorker struct {
	sender NotificationSender
	logger *zap.Logger
}

// NewCoverageNotificationWorker constructs the worker.
func NewCoverageNotificationWorker(sender NotificationSender, logger *zap.Logger) *CoverageNotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = NewLogNotificationSender(logger)
	}
	return &CoverageNotificationWorker{sender: sender, logger: logger}
}

// Handle implements jobs.Handler.
func (w *CoverageNotificationWorker) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobCoverageAssignment:
		var notice dto.CoverageAssignmentNotice
		if err := decodeNotice(job.Payload, &notice); err != nil {
			return w.drop(job, err)
		}
		return w.sender.SendAssignment(ctx, notice)
	case JobCoverageEscalation:
		var notice dto.CoverageEscalationNotice
		if err := decodeNotice(job.Payload, &notice); err != nil {
			return w.drop(job, err)
		}
		return w.sender.SendEscalation(ctx, notice)
	case JobCoverageSummary:
		var notice dto.CoverageSummaryNotice
		if err := decodeNotice(job.Payload, &notice); err != nil {
			return w.drop(job, err)
		}
		return w.sender.SendSummary(ctx, notice)
	default:
		return w.drop(job, fmt.Errorf("unknown job type %q", job.Type))
	}
}

// drop marks a job that can never succeed so the queue does not retry it.
func (w *CoverageNotificationWorker) drop(job jobs.Job, err error) error {
	w.logger.Debug("coverage notification unreadable", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Error(err))
	return jobs.Permanent(err)
}

// decodeNotice accepts either the typed notice or a generic JSON value.
func decodeNotice(payload interface{}, dest interface{}) error {
	switch v := payload.(type) {
	case dto.CoverageAssignmentNotice:
		if d, ok := dest.(*dto.CoverageAssignmentNotice); ok {
			*d = v
			return nil
		}
	case dto.CoverageEscalationNotice:
		if d, ok := dest.(*dto.CoverageEscalationNotice); ok {
			*d = v
			return nil
		}
	case dto.CoverageSummaryNotice:
		if d, ok := dest.(*dto.CoverageSummaryNotice); ok {
			*d = v
			return nil
		}
	case nil:
		return fmt.Errorf("empty payload")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
