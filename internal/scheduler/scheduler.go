package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/rvallee/meteo-collector/internal/collect"
	"github.com/rvallee/meteo-collector/internal/storage"
)

// Scheduler drives the periodic collection cycle and daily retention cleanup.
// Cycles never overlap: the underlying job runs on a single trigger.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	orch        *collect.Orchestrator
	local       *storage.LocalSink
	interval    time.Duration
	cleanupDays int
}

func New(interval time.Duration, orch *collect.Orchestrator, local *storage.LocalSink, cleanupDays int) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:   s,
		orch:        orch,
		local:       local,
		interval:    interval,
		cleanupDays: cleanupDays,
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running collection cycle")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := s.orch.Run(ctx, nil); err != nil {
			log.Printf("scheduler: collection cycle failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	if s.cleanupDays > 0 {
		_, err = s.scheduler.Every(1).Day().At("03:00").Do(func() {
			removed, err := s.local.Cleanup(time.Duration(s.cleanupDays) * 24 * time.Hour)
			if err != nil {
				log.Printf("scheduler: cleanup failed: %v", err)
				return
			}
			if removed > 0 {
				log.Printf("scheduler: cleanup removed %d old data files", removed)
			}
		})
		if err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
