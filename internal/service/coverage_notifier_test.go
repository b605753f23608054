package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
	"github.com/noah-isme/sma-coverage-api/internal/dto"
	"github.com/noah-isme/sma-coverage-api/pkg/jobs"
)

type senderStub struct {
	assignments []dto.CoverageAssignmentNotice
	escalations []dto.CoverageEscalationNotice
	summaries   []dto.CoverageSummaryNotice
	err         error
}

func (s *senderStub) SendAssignment(_ context.Context, n dto.CoverageAssignmentNotice) error {
	s.assignments = append(s.assignments, n)
	return s.err
}

func (s *senderStub) SendEscalation(_ context.Context, n dto.CoverageEscalationNotice) error {
	s.escalations = append(s.escalations, n)
	return s.err
}

func (s *senderStub) SendSummary(_ context.Context, n dto.CoverageSummaryNotice) error {
	s.summaries = append(s.summaries, n)
	return s.err
}

func TestCoverageNotificationWorkerDispatch(t *testing.T) {
	sender := &senderStub{}
	worker := NewCoverageNotificationWorker(sender, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, worker.Handle(ctx, jobs.Job{Type: JobCoverageAssignment, Payload: dto.CoverageAssignmentNotice{CandidateID: "sub-1", Period: "1st"}}))
	require.NoError(t, worker.Handle(ctx, jobs.Job{Type: JobCoverageEscalation, Payload: map[string]interface{}{"absenceId": "abs-1", "period": "2nd"}}))
	require.NoError(t, worker.Handle(ctx, jobs.Job{Type: JobCoverageSummary, Payload: dto.CoverageSummaryNotice{RunID: "run-1", Metrics: coverage.RunMetrics{TotalPeriodsNeeded: 2}}}))

	require.Len(t, sender.assignments, 1)
	assert.Equal(t, "sub-1", sender.assignments[0].CandidateID)
	require.Len(t, sender.escalations, 1)
	assert.Equal(t, "abs-1", sender.escalations[0].AbsenceID)
	assert.Equal(t, "2nd", sender.escalations[0].Period)
	require.Len(t, sender.summaries, 1)
	assert.Equal(t, 2, sender.summaries[0].Metrics.TotalPeriodsNeeded)
}

func TestCoverageNotificationWorkerDropsBadJobs(t *testing.T) {
	sender := &senderStub{}
	worker := NewCoverageNotificationWorker(sender, nil)

	for _, job := range []jobs.Job{
		{Type: "coverage.unknown"},
		{Type: JobCoverageSummary},
		{Type: JobCoverageSummary, Payload: func() {}},
	} {
		err := worker.Handle(context.Background(), job)
		require.Error(t, err)
		assert.True(t, jobs.IsPermanent(err))
	}
	assert.Empty(t, sender.summaries)
}

func TestCoverageNotificationWorkerSurfacesSendErrors(t *testing.T) {
	sender := &senderStub{err: errors.New("smtp down")}
	worker := NewCoverageNotificationWorker(sender, nil)

	err := worker.Handle(context.Background(), jobs.Job{Type: JobCoverageEscalation, Payload: dto.CoverageEscalationNotice{AbsenceID: "abs-1"}})
	require.Error(t, err)
}

func TestCoverageNotificationWorkerOnQueue(t *testing.T) {
	sender := &senderStub{}
	worker := NewCoverageNotificationWorker(sender, nil)
	queue := jobs.NewQueue("coverage-test", worker.Handle, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	queue.Start(context.Background())
	defer queue.Stop()

	require.NoError(t, queue.Enqueue(jobs.Job{ID: "j1", Type: JobCoverageSummary, Payload: dto.CoverageSummaryNotice{RunID: "run-9"}}))
	require.Eventually(t, func() bool {
		return queue.Processed() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "run-9", sender.summaries[0].RunID)
}

func TestLogNotificationSender(t *testing.T) {
	sender := NewLogNotificationSender(nil)
	ctx := context.Background()
	assert.NoError(t, sender.SendAssignment(ctx, dto.CoverageAssignmentNotice{}))
	assert.NoError(t, sender.SendEscalation(ctx, dto.CoverageEscalationNotice{}))
	assert.NoError(t, sender.SendSummary(ctx, dto.CoverageSummaryNotice{}))
}
