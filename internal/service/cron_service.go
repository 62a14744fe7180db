// Package service contains the service layer for the Profile API
package service

import (
	"context"
	"time"

	"github.com/nsvirk/profileapi/internal/config"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
	"github.com/robfig/cron/v3"
)

// CronService is the service for the cron jobs
type CronService struct {
	cfg            *config.Config
	c              *cron.Cron
	sessionService *SessionService
	now            func() time.Time
}

// NewCronService creates a new CronService
func NewCronService(cfg *config.Config, sessionService *SessionService) *CronService {
	return &CronService{
		cfg:            cfg,
		c:              cron.New(),
		sessionService: sessionService,
		now:            time.Now,
	}
}

// Start starts the cron service
func (cs *CronService) Start() {
	zaplogger.Info("Initializing CronService")

	// ------------------------------------------------------------
	// SCHEDULED jobs
	// ------------------------------------------------------------
	cs.addScheduledJob("Sessions PURGE Job", cs.sessionsPurgeJob, cs.cfg.SessionPurgeCron)

	// ------------------------------------------------------------
	// STARTUP jobs
	// ------------------------------------------------------------
	cs.addStartupJob("Sessions PURGE Job", cs.sessionsPurgeJob, 5*time.Second)

	cs.c.Start()
}

// Stop stops the scheduler and waits for running jobs
func (cs *CronService) Stop() {
	<-cs.c.Stop().Done()
}

// addStartupJob adds a startup job to the cron service
func (cs *CronService) addStartupJob(name string, job func(), delay time.Duration) {
	go func() {
		time.Sleep(delay)
		zaplogger.Info("STARTED STARTUP job", zaplogger.Fields{"job": name})
		job()
		zaplogger.Info("COMPLETED STARTUP job", zaplogger.Fields{"job": name})
	}()
	zaplogger.Info("QUEUED STARTUP job", zaplogger.Fields{"job": name})
}

func (cs *CronService) addScheduledJob(name string, job func(), schedule string) {
	_, err := cs.c.AddFunc(schedule, func() {
		zaplogger.Info("STARTED SCHEDULED JOB", zaplogger.Fields{"job": name})
		job()
		zaplogger.Info("COMPLETED SCHEDULED JOB", zaplogger.Fields{"job": name})
	})
	if err != nil {
		zaplogger.Error("FAILED TO QUEUE SCHEDULED JOB", zaplogger.Fields{
			"job":      name,
			"schedule": schedule,
			"error":    err.Error(),
		})
		return
	}
	zaplogger.Info("QUEUED SCHEDULED job", zaplogger.Fields{"job": name, "schedule": schedule})
}

// sessionsPurgeJob deletes sessions idle for longer than the session TTL
func (cs *CronService) sessionsPurgeJob() {
	jobName := "Sessions PURGE Job "
	if cs.cfg.SessionTTL <= 0 {
		zaplogger.Info(jobName, zaplogger.Fields{"skipped": "sessions never expire"})
		return
	}

	cutoff := cs.now().Add(-cs.cfg.SessionTTL)
	purged, err := cs.sessionService.PurgeExpiredSessions(context.Background(), cutoff)
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{"error": err.Error()})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"cutoff": cutoff.Format(time.RFC3339),
		"purged": purged,
	})
}
