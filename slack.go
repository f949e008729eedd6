package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

const (
	actionAcceptRecord  = "pending_accept"
	actionDiscardRecord = "pending_discard"

	draftTimeout     = 3 * time.Minute
	previewMaxChars  = 280
	minArticleChars  = 200
	statsWindowDays  = 30
	setFieldArgCount = 2
)

// StartSlackBot runs the review surface over Socket Mode: articles come in via
// /code, drafted records are verified one at a time per channel, accepted rows
// land in the coded dataset.
func StartSlackBot(cfg Config, db *sql.DB, api *slack.Client, producer *DraftProducer, codebook *Codebook, sessions *SessionStore) error {
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				client.Ack(*evt.Request)
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				log.Printf("Slash command received: %s from user=%s channel=%s", cmd.Command, cmd.UserID, cmd.ChannelID)
				go handleSlashCommand(api, db, cfg, producer, codebook, sessions, cmd)
			case socketmode.EventTypeInteractive:
				client.Ack(*evt.Request)
				callback, ok := evt.Data.(slack.InteractionCallback)
				if !ok {
					continue
				}
				go handleInteraction(api, db, cfg, sessions, callback)
			}
		}
	}()

	log.Println("Slack bot connected via Socket Mode")
	return client.Run()
}

func handleSlashCommand(api *slack.Client, db *sql.DB, cfg Config, producer *DraftProducer, codebook *Codebook, sessions *SessionStore, cmd slack.SlashCommand) {
	switch cmd.Command {
	case "/code":
		handleCode(api, db, cfg, producer, codebook, sessions, cmd)
	case "/pending":
		handlePending(api, sessions, cmd)
	case "/accept":
		handleAccept(api, db, cfg, sessions, cmd)
	case "/discard":
		handleDiscard(api, cfg, sessions, cmd)
	case "/setfield":
		handleSetField(api, cfg, sessions, cmd)
	case "/export":
		handleExport(api, db, cfg, cmd)
	case "/clear-session":
		handleClearSession(api, db, cfg, sessions, cmd)
	case "/coding-stats":
		handleCodingStats(api, db, sessions, cmd)
	case "/help":
		handleHelp(api, cmd)
	}
}

func handleCode(api *slack.Client, db *sql.DB, cfg Config, producer *DraftProducer, codebook *Codebook, sessions *SessionStore, cmd slack.SlashCommand) {
	article := strings.TrimSpace(cmd.Text)
	if article == "" {
		postEphemeral(api, cmd, "Usage: /code <full article text>\nPaste the complete article, including page/section anchors if possible.")
		return
	}
	if len(article) < minArticleChars {
		postEphemeral(api, cmd, fmt.Sprintf("Article text looks too short (%d chars). Paste the full text — partial input produces unreliable coding.", len(article)))
		return
	}
	if !cfg.IsReviewerID(cmd.UserID) {
		postEphemeral(api, cmd, "Only configured reviewers can run coding.")
		return
	}

	session := sessions.ForChannel(cmd.ChannelID)
	if n := session.PendingCount(); n > 0 {
		postEphemeral(api, cmd, fmt.Sprintf("There are still %d pending record(s) in this channel. Finish or /clear-session first.", n))
		return
	}

	postEphemeral(api, cmd, "Coding started — reading the article...")

	ctx, cancel := context.WithTimeout(context.Background(), draftTimeout)
	defer cancel()

	rows, usage, err := producer.GenerateCodingDraft(ctx, article)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Coding failed: %v", err))
		log.Printf("code draft error user=%s: %v", cmd.UserID, err)
		return
	}
	if len(rows) == 0 {
		postEphemeral(api, cmd, "The model produced no rows for this article.")
		return
	}

	// Curator hints are applied to the raw rows so normalization and QC see
	// the final axis values.
	for i := range rows {
		rows[i] = map[string]string(ApplyAxisHints(CodingRecord(rows[i]), article, codebook.AxisHints))
	}

	if err := InsertDraftEvent(db, DraftEvent{
		ArticleSHA:   ArticleSHA(article),
		Provider:     cfg.LLMProvider,
		Model:        producer.Model(),
		RowsProduced: len(rows),
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		RequestedBy:  cmd.UserID,
	}); err != nil {
		log.Printf("draft history insert error: %v", err)
	}

	queued := session.Enqueue(rows, article)
	log.Printf("code drafted user=%s rows=%d tokens_in=%d tokens_out=%d", cmd.UserID, queued, usage.InputTokens, usage.OutputTokens)

	presentPending(api, sessions, cmd.ChannelID,
		fmt.Sprintf("Drafted %d record(s) from the article. Verify each one:", queued))
}

func handlePending(api *slack.Client, sessions *SessionStore, cmd slack.SlashCommand) {
	session := sessions.ForChannel(cmd.ChannelID)
	if session.PendingCount() == 0 {
		postEphemeral(api, cmd, "No pending records in this channel.")
		return
	}
	presentPending(api, sessions, cmd.ChannelID, "Current pending record:")
}

func handleAccept(api *slack.Client, db *sql.DB, cfg Config, sessions *SessionStore, cmd slack.SlashCommand) {
	if !cfg.IsReviewerID(cmd.UserID) {
		postEphemeral(api, cmd, "Only configured reviewers can accept records.")
		return
	}
	commitCurrent(api, db, sessions, cmd.ChannelID, cmd.UserID, "")
}

func handleDiscard(api *slack.Client, cfg Config, sessions *SessionStore, cmd slack.SlashCommand) {
	if !cfg.IsReviewerID(cmd.UserID) {
		postEphemeral(api, cmd, "Only configured reviewers can discard records.")
		return
	}
	discardCurrent(api, sessions, cmd.ChannelID, cmd.UserID, "")
}

func handleSetField(api *slack.Client, cfg Config, sessions *SessionStore, cmd slack.SlashCommand) {
	if !cfg.IsReviewerID(cmd.UserID) {
		postEphemeral(api, cmd, "Only configured reviewers can edit records.")
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cmd.Text), " ", setFieldArgCount)
	if len(parts) < setFieldArgCount {
		postEphemeral(api, cmd, "Usage: /setfield <field> <value>\nExample: /setfield equity_level 2")
		return
	}
	field := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])

	if !isRegisteredField(field) {
		postEphemeral(api, cmd, fmt.Sprintf("Unknown field %q. Fields: %s", field, strings.Join(Columns(), ", ")))
		return
	}

	session := sessions.ForChannel(cmd.ChannelID)
	if err := session.SetField(field, value); err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Edit rejected: %v", err))
		return
	}
	log.Printf("setfield user=%s field=%s", cmd.UserID, field)
	presentPending(api, sessions, cmd.ChannelID, fmt.Sprintf("Updated %s. Current pending record:", field))
}

func handleExport(api *slack.Client, db *sql.DB, cfg Config, cmd slack.SlashCommand) {
	count, err := CountCodedRecords(db)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Export failed: %v", err))
		return
	}
	if count == 0 {
		postEphemeral(api, cmd, "The coded dataset is empty — nothing to export.")
		return
	}
	csvPath, jsonPath, err := WriteExportFiles(db, cfg.ExportOutputDir, cfg.ProjectName, time.Now())
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Export failed: %v", err))
		log.Printf("export error user=%s: %v", cmd.UserID, err)
		return
	}
	postEphemeral(api, cmd, fmt.Sprintf("Exported %d record(s):\n• %s\n• %s", count, csvPath, jsonPath))
	log.Printf("export complete user=%s records=%d", cmd.UserID, count)
}

func handleClearSession(api *slack.Client, db *sql.DB, cfg Config, sessions *SessionStore, cmd slack.SlashCommand) {
	if !cfg.IsReviewerID(cmd.UserID) {
		postEphemeral(api, cmd, "Only configured reviewers can clear the session.")
		return
	}
	sessions.ForChannel(cmd.ChannelID).Reset()
	if err := ClearCodedRecords(db); err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Error clearing coded dataset: %v", err))
		return
	}
	postEphemeral(api, cmd, "Session cleared: pending queue emptied and coded dataset reset.")
	log.Printf("session cleared user=%s channel=%s", cmd.UserID, cmd.ChannelID)
}

func handleCodingStats(api *slack.Client, db *sql.DB, sessions *SessionStore, cmd slack.SlashCommand) {
	count, err := CountCodedRecords(db)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Stats unavailable: %v", err))
		return
	}
	since := time.Now().AddDate(0, 0, -statsWindowDays)
	stats, err := GetDraftStats(db, since)
	if err != nil {
		postEphemeral(api, cmd, fmt.Sprintf("Stats unavailable: %v", err))
		return
	}
	pending := sessions.ForChannel(cmd.ChannelID).PendingCount()
	postEphemeral(api, cmd, fmt.Sprintf(
		"Coding stats (last %d days):\n• Coded records in dataset: %d\n• Pending in this channel: %d\n• Draft runs: %d (%d rows)\n• Tokens: %d in / %d out",
		statsWindowDays, count, pending, stats.TotalDrafts, stats.TotalRows, stats.InputTokens, stats.OutputTokens))
}

func handleHelp(api *slack.Client, cmd slack.SlashCommand) {
	help := "Codebook coding assistant:\n" +
		"• `/code <article text>` — draft coded records from a pasted article\n" +
		"• `/pending` — show the record awaiting verification\n" +
		"• `/setfield <field> <value>` — edit one field of the pending record\n" +
		"• `/accept` — save the pending record to the coded dataset\n" +
		"• `/discard` — drop the pending record\n" +
		"• `/export` — write the dataset as CSV and JSON\n" +
		"• `/coding-stats` — dataset and draft-run statistics\n" +
		"• `/clear-session` — empty the pending queue and the dataset"
	postEphemeral(api, cmd, help)
}

// --- Interactions ---

func handleInteraction(api *slack.Client, db *sql.DB, cfg Config, sessions *SessionStore, callback slack.InteractionCallback) {
	if callback.Type != slack.InteractionTypeBlockActions {
		return
	}
	for _, action := range callback.ActionCallback.BlockActions {
		switch action.ActionID {
		case actionAcceptRecord:
			if !cfg.IsReviewerID(callback.User.ID) {
				postChannel(api, callback.Channel.ID, fmt.Sprintf("<@%s> is not a configured reviewer.", callback.User.ID))
				continue
			}
			commitCurrent(api, db, sessions, callback.Channel.ID, callback.User.ID, action.Value)
		case actionDiscardRecord:
			if !cfg.IsReviewerID(callback.User.ID) {
				postChannel(api, callback.Channel.ID, fmt.Sprintf("<@%s> is not a configured reviewer.", callback.User.ID))
				continue
			}
			discardCurrent(api, sessions, callback.Channel.ID, callback.User.ID, action.Value)
		}
	}
}

func commitCurrent(api *slack.Client, db *sql.DB, sessions *SessionStore, channelID, userID, pendingID string) {
	session := sessions.ForChannel(channelID)
	rec, err := session.Commit(db, pendingID, userID)
	if err != nil {
		postChannel(api, channelID, fmt.Sprintf("Accept failed: %v", err))
		log.Printf("accept error user=%s channel=%s: %v", userID, channelID, err)
		return
	}
	log.Printf("record accepted user=%s channel=%s split_case=%s", userID, channelID, rec["split_case"])

	remaining := session.PendingCount()
	if remaining > 0 {
		presentPending(api, sessions, channelID,
			fmt.Sprintf("Record saved by <@%s>. %d remaining:", userID, remaining))
		return
	}
	postChannel(api, channelID, fmt.Sprintf("Record saved by <@%s>. Verification queue is empty.", userID))
}

func discardCurrent(api *slack.Client, sessions *SessionStore, channelID, userID, pendingID string) {
	session := sessions.ForChannel(channelID)
	if err := session.Discard(pendingID); err != nil {
		postChannel(api, channelID, fmt.Sprintf("Discard failed: %v", err))
		return
	}
	log.Printf("record discarded user=%s channel=%s", userID, channelID)

	remaining := session.PendingCount()
	if remaining > 0 {
		presentPending(api, sessions, channelID,
			fmt.Sprintf("Record discarded by <@%s>. %d remaining:", userID, remaining))
		return
	}
	postChannel(api, channelID, fmt.Sprintf("Record discarded by <@%s>. Verification queue is empty.", userID))
}

// --- Rendering ---

func presentPending(api *slack.Client, sessions *SessionStore, channelID, header string) {
	session := sessions.ForChannel(channelID)
	pending, ok := session.Current()
	if !ok {
		postChannel(api, channelID, "No pending records.")
		return
	}

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, header, false, false), nil, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, renderRecordSummary(pending.Record), false, false), nil, nil),
		slack.NewActionBlock("pending_actions",
			slack.NewButtonBlockElement(actionAcceptRecord, pending.ID,
				slack.NewTextBlockObject(slack.PlainTextType, "Accept & Save", false, false)).WithStyle(slack.StylePrimary),
			slack.NewButtonBlockElement(actionDiscardRecord, pending.ID,
				slack.NewTextBlockObject(slack.PlainTextType, "Discard", false, false)).WithStyle(slack.StyleDanger),
		),
	}

	_, _, err := api.PostMessage(channelID, slack.MsgOptionBlocks(blocks...))
	if err != nil {
		log.Printf("present pending error channel=%s: %v", channelID, err)
	}
}

// renderRecordSummary lists every field except original_text, truncating long
// free-text values. Full source text stays in the stored record only.
func renderRecordSummary(rec CodingRecord) string {
	var b strings.Builder
	for _, name := range Columns() {
		if name == "original_text" {
			continue
		}
		val := rec[name]
		if val == "" {
			val = "_(empty)_"
		} else if len(val) > previewMaxChars {
			val = val[:previewMaxChars] + "..."
		}
		b.WriteString(fmt.Sprintf("*%s*: %s\n", name, val))
	}
	b.WriteString("\nEdit with `/setfield <field> <value>` before accepting.")
	return b.String()
}

func postEphemeral(api *slack.Client, cmd slack.SlashCommand, text string) {
	_, err := api.PostEphemeral(cmd.ChannelID, cmd.UserID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("ephemeral post error user=%s channel=%s: %v", cmd.UserID, cmd.ChannelID, err)
	}
}

func postChannel(api *slack.Client, channelID, text string) {
	_, _, err := api.PostMessage(channelID, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("channel post error channel=%s: %v", channelID, err)
	}
}
