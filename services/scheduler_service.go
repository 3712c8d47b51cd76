package services

import (
	"time"

	"coopledger/config"
	"coopledger/utils"
)

// SchedulerService runs the periodic overdue sweep in the background.
type SchedulerService struct {
	period   *PeriodService
	interval time.Duration
	stop     chan struct{}
}

// NewSchedulerService creates a new SchedulerService
func NewSchedulerService(period *PeriodService, cfg *config.Config) *SchedulerService {
	hours := cfg.Scheduler.OverdueSweepHours
	if hours <= 0 {
		hours = 24
	}
	return &SchedulerService{
		period:   period,
		interval: time.Duration(hours) * time.Hour,
		stop:     make(chan struct{}),
	}
}

// Start launches the sweep loop. One sweep runs immediately so a restart
// never leaves overdue loans unflagged for a full interval.
func (s *SchedulerService) Start() {
	go func() {
		s.sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop
func (s *SchedulerService) Stop() {
	close(s.stop)
}

func (s *SchedulerService) sweep() {
	flagged, err := s.period.CheckAndFlagOverdueLoans()
	if err != nil {
		utils.LogError("overdue sweep failed: %v", err)
		return
	}
	if flagged > 0 {
		utils.LogInfo("overdue sweep flagged %d loans as defaulted", flagged)
	}
}
