/**
 * @description
 * Cron wiring for the periodic OTP expiry sweep. The sweep is idempotent and
 * safe to run alongside live verifications, so overlapping runs across
 * replicas are harmless.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the OTP expiry sweep on a schedule.
type Sweeper struct {
	cron     *cron.Cron
	otp      *OtpService
	schedule string
}

// NewSweeper creates a sweeper for the given cron schedule expression.
func NewSweeper(otp *OtpService, schedule string) *Sweeper {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))))
	return &Sweeper{cron: c, otp: otp, schedule: schedule}
}

// Start registers and starts the sweep job.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("level=info component=sweeper msg=\"otp expiry sweep scheduled\" schedule=%q", s.schedule)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := s.otp.ExpireOldOtps(ctx)
	if err != nil {
		log.Printf("level=error component=sweeper msg=\"otp expiry sweep failed\" err=%v", err)
		return
	}
	if count > 0 {
		log.Printf("level=info component=sweeper msg=\"otp expiry sweep finished\" expired=%d", count)
	}
}
