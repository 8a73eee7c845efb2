package bot

import (
	"log"
	"time"

	"repost-bot/dhash"

	"github.com/robfig/cron/v3"
)

const reportCacheMaxAge = 24 * time.Hour

var c *cron.Cron

// startScheduler starts the cron jobs.
func startScheduler(reporter *dhash.Reporter) {
	log.Println("Initializing scheduler...")
	c = cron.New()
	_, err := c.AddFunc("@hourly", func() {
		if pruned := reporter.PruneCache(reportCacheMaxAge); pruned > 0 {
			log.Printf("Pruned %d stale report cache entries", pruned)
		}
	})
	if err != nil {
		log.Fatalf("Could not set up cron job: %v", err)
	}
	c.Start()
	log.Println("Cron job scheduled to run hourly.")
}

// stopScheduler stops the cron jobs.
func stopScheduler() {
	if c != nil {
		c.Stop()
		log.Println("Scheduler stopped.")
	}
}
