package jobs

import (
	"context"

	"serotonyl.ru/birdwatch/internal/features/nearby"
)

// Расписания
const (
	StreakExpirySpec  = "5 0 * * *"
	OTPCleanupSpec    = "17 * * * *"
	ScoreReconcile    = "0 3 * * *"
	PendingDigestSpec = "*/30 * * * *"
)

// Deps: сервисы, которые обслуживают задачи. Nil-поле выключает задачу.
type Deps struct {
	Streaks interface {
		ExpireBroken(ctx context.Context) error
	}
	OTPs interface {
		CleanupOTPs(ctx context.Context) error
	}
	Scores interface {
		ReconcileScores(ctx context.Context) error
	}
	Pending interface {
		PendingSightings(ctx context.Context) ([]*nearby.Sighting, error)
	}
	Digest interface {
		Digest(ctx context.Context, pending []*nearby.Sighting) error
	}
}

// Jobs собирает список задач приложения.
func Jobs(d Deps) []Job {
	var jobs []Job
	if d.Streaks != nil {
		jobs = append(jobs, Job{Name: "streak_expiry", Spec: StreakExpirySpec, Run: d.Streaks.ExpireBroken})
	}
	if d.OTPs != nil {
		jobs = append(jobs, Job{Name: "otp_cleanup", Spec: OTPCleanupSpec, Run: d.OTPs.CleanupOTPs})
	}
	if d.Scores != nil {
		jobs = append(jobs, Job{Name: "rarity_reconcile", Spec: ScoreReconcile, Run: d.Scores.ReconcileScores})
	}
	if d.Pending != nil && d.Digest != nil {
		jobs = append(jobs, Job{Name: "pending_digest", Spec: PendingDigestSpec, Run: func(ctx context.Context) error {
			pending, err := d.Pending.PendingSightings(ctx)
			if err != nil {
				return err
			}
			return d.Digest.Digest(ctx, pending)
		}})
	}
	return jobs
}
