package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banktrail/ingestor/pkg/model"
)

func jobs(statuses ...model.JobStatus) []*model.IngestionJob {
	out := make([]*model.IngestionJob, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, &model.IngestionJob{Status: s})
	}

	return out
}

func TestScore(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-1 * time.Hour)

	testCases := []struct {
		name                string
		jobs                []*model.IngestionJob
		consecutiveFailures int
		lastSuccessAt       *time.Time
		wantScore           int
		wantStatus          model.HealthStatus
	}{
		{
			name:          "no history defaults to perfect",
			jobs:          nil,
			lastSuccessAt: nil,
			wantScore:     100,
			wantStatus:    model.HealthHealthy,
		},
		{
			name:          "all successes, recent success, no failures",
			jobs:          jobs(model.JobCompleted, model.JobCompleted, model.JobCompleted),
			lastSuccessAt: &recent,
			wantScore:     100,
			wantStatus:    model.HealthHealthy,
		},
		{
			name:                "three consecutive failures drags score to warning",
			jobs:                jobs(model.JobFailed, model.JobFailed, model.JobFailed, model.JobCompleted),
			consecutiveFailures: 3,
			lastSuccessAt:       &recent,
			// successRate = 25 -> 0.4*25=10; failureTerm = 100-45=55 -> 0.4*55=22; staleness=100 -> 0.2*100=20
			// total = 52
			wantScore:  52,
			wantStatus: model.HealthWarning,
		},
		{
			name:                "many consecutive failures is critical",
			jobs:                jobs(model.JobFailed, model.JobFailed, model.JobFailed, model.JobFailed),
			consecutiveFailures: 8,
			lastSuccessAt:       nil,
			wantScore:           0,
			wantStatus:          model.HealthCritical,
		},
		{
			name:          "stale last success degrades score",
			jobs:          jobs(model.JobCompleted),
			lastSuccessAt: timePtr(now.Add(-72 * time.Hour)),
			// successRate=100 -> 40; failureTerm=100 -> 40; staleness: age=72h -> 100-30=70 -> 0.2*70=14
			// total = 94
			wantScore:  94,
			wantStatus: model.HealthHealthy,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			score, status := Score(tc.jobs, tc.consecutiveFailures, tc.lastSuccessAt, now)
			assert.Equal(t, tc.wantScore, score)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func timePtr(t time.Time) *time.Time { return &t }
