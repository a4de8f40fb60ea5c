// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание в часовом поясе приложения.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/birdwatch/internal/metrics"
)

// Job: фоновая задача по расписанию.
type Job struct {
	Name string
	Spec string // cron-выражение, 5 полей
	Run  func(ctx context.Context) error
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	jobs []Job
}

// NewScheduler создаёт планировщик задач в часовом поясе loc.
func NewScheduler(loc *time.Location, jobs ...Job) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	return &Scheduler{cron: c, loc: loc, jobs: jobs}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, j := range s.jobs {
		if _, err := s.cron.AddFunc(j.Spec, s.wrap(ctx, j)); err != nil {
			return fmt.Errorf("задача %s: неверное расписание %q: %w", j.Name, j.Spec, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{"jobs": len(s.jobs), "tz": s.loc.String()}).Info("Планировщик задач запущен")
	return nil
}

// wrap добавляет к задаче логирование и метрики.
func (s *Scheduler) wrap(ctx context.Context, j Job) func() {
	return func() {
		started := time.Now()
		logger := log.WithField("job", j.Name)
		logger.Debug("[CRON] Запуск задачи")

		err := j.Run(ctx)
		metrics.RecordJob(j.Name, err)
		if err != nil {
			logger.WithError(err).Error("[CRON] Ошибка задачи")
			return
		}
		logger.WithField("took", time.Since(started).Round(time.Millisecond)).Debug("[CRON] Задача выполнена")
	}
}

// Stop останавливает планировщик и дожидается запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
