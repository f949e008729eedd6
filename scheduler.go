package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// StartAutoExportScheduler periodically writes the coded dataset to the export
// directory and posts a summary to the report channel. The schedule is a
// standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "0 18 * * *" (daily 6pm), "0 18 * * 5" (Fridays 6pm).
func StartAutoExportScheduler(cfg Config, db *sql.DB, api *slack.Client) {
	schedule := strings.TrimSpace(cfg.AutoExportSchedule)
	if schedule == "" {
		log.Println("Auto-export disabled (auto_export_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid auto_export_schedule '%s': %v — auto-export disabled", schedule, err)
		return
	}

	log.Printf("Auto-export scheduled (cron: %s) to %s", schedule, cfg.ExportOutputDir)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next auto-export at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			summary := runAutoExport(cfg, db)
			log.Printf("Auto-export complete: %s", summary)

			if cfg.ReportChannelID != "" {
				_, _, postErr := api.PostMessage(cfg.ReportChannelID, slack.MsgOptionText(
					fmt.Sprintf("Auto-export complete: %s", summary), false))
				if postErr != nil {
					log.Printf("Auto-export post error: %v", postErr)
				}
			}
		}
	}()
}

func runAutoExport(cfg Config, db *sql.DB) string {
	count, err := CountCodedRecords(db)
	if err != nil {
		return fmt.Sprintf("error counting records: %v", err)
	}
	if count == 0 {
		return "dataset empty, nothing written"
	}
	csvPath, jsonPath, err := WriteExportFiles(db, cfg.ExportOutputDir, cfg.ProjectName, time.Now())
	if err != nil {
		return fmt.Sprintf("error writing exports: %v", err)
	}
	return fmt.Sprintf("%d record(s) written to %s and %s", count, csvPath, jsonPath)
}
