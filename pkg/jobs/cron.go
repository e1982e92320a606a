package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const reconcileTimeout = 5 * time.Minute

// CronManager manages scheduled jobs
type CronManager struct {
	cron       *cron.Cron
	reconciler *Reconciler
	schedule   string
	logger     *log.Logger
}

// NewCronManager creates a new cron manager running reconciler on schedule
func NewCronManager(reconciler *Reconciler, schedule string, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		reconciler: reconciler,
		schedule:   schedule,
		logger:     logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	_, err := cm.cron.AddFunc(cm.schedule, cm.runReconciliation)
	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Printf("  - %s: Reconcile pending payments", cm.schedule)

	return nil
}

func (cm *CronManager) runReconciliation() {
	cm.logger.Println("🕐 Running payment reconciliation...")

	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	report, err := cm.reconciler.RunOnce(ctx)
	if err != nil {
		cm.logger.Printf("❌ Payment reconciliation failed: %v", err)
		return
	}

	if report.Flagged > 0 || report.Errors > 0 {
		cm.logger.Printf("⚠️  Reconciliation checked=%d flagged=%d errors=%d", report.Checked, report.Flagged, report.Errors)
		return
	}
	cm.logger.Printf("✅ Reconciliation checked=%d, nothing to flag", report.Checked)
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the scheduler and waits for a running job to finish
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	<-cm.cron.Stop().Done()
}
