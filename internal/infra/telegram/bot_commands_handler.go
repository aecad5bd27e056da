package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			return c.Send(fmt.Sprintf("Hello, %s! The observation scheduler is ready. Use /help for the command list.", c.Sender().FirstName))
		}
		return c.Send("This bot is for administrators of the observation scheduler.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			return c.Send("No commands are available to you.")
		}
		return c.Send(adminHelpText(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func adminHelpText() string {
	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/set_schedule <observer_id> <child_id> <HH:MM>`\n - Create or move a daily report time.\n\n")
	helpText.WriteString("`/pause_schedule <observer_id> <child_id>`\n - Stop reminders without deleting the schedule.\n\n")
	helpText.WriteString("`/resume_schedule <observer_id> <child_id>`\n - Resume a paused schedule.\n\n")
	helpText.WriteString("`/delete_schedule <observer_id> <child_id>`\n - Remove a schedule.\n\n")
	helpText.WriteString("`/schedule_status <observer_id>`\n - Show next sessions and what is due now.\n\n")
	helpText.WriteString("`/review_pool <observer_id>`\n - Show observations the observer may peer-review.\n\n")
	helpText.WriteString("`/record_note <observer_id> <child_id> <scheduled|manual> <text>`\n - Record a typed observation.\n\n")
	helpText.WriteString("`/processing_history <observer_id> <child_id>`\n - Show recent reports for a child.\n\n")
	helpText.WriteString("`/scheduler_status`\n - Show the reminder dispatcher state.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
