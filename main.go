package main

import (
	"log"
	"os"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	codebook, err := LoadCodebook(cfg.CodebookPath)
	if err != nil {
		log.Fatalf("Failed to load codebook: %v", err)
	}
	log.Printf("Loaded codebook (%d chars, %d axis hints)", len(codebook.Text), len(codebook.AxisHints))

	os.MkdirAll(cfg.ExportOutputDir, 0755)

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)

	producer := NewDraftProducer(cfg, codebook)
	sessions := NewSessionStore()

	StartAutoExportScheduler(cfg, db, api)

	log.Println("Starting Coding Assistant Bot...")
	if err := StartSlackBot(cfg, db, api, producer, codebook, sessions); err != nil {
		log.Fatalf("Slack bot error: %v", err)
	}
}
