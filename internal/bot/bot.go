package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/events"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/maxaizer/bulk-scraper/internal/services"
	log "github.com/sirupsen/logrus"
)

const (
	runCommandName    = "run"
	statusCommandName = "status"
	helpCommandName   = "help"
)

type apiInterface interface {
	Send(chattable botApi.Chattable) (botApi.Message, error)
}

type jobRunner interface {
	Start(ctx context.Context, configID string) (*entities.JobRun, error)
	GetJobRun(ctx context.Context, id string) (*entities.JobRun, error)
}

// Bot reports finished runs to the admin chat and accepts run commands from it.
// Messages from any other chat are ignored.
type Bot struct {
	api    apiInterface
	tgApi  *botApi.BotAPI
	chatID int64
	runner jobRunner
}

func NewBot(token string, chatID int64, bus EventBus.Bus, runner jobRunner) (*Bot, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)

	err = botApi.SetLogger(log.StandardLogger())
	if err != nil {
		return nil, err
	}

	b, err := newBot(api, chatID, bus, runner)
	if err != nil {
		return nil, err
	}
	b.tgApi = api
	return b, nil
}

func newBot(api apiInterface, chatID int64, bus EventBus.Bus, runner jobRunner) (*Bot, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}

	if runner == nil {
		return nil, errors.New("job runner is nil")
	}

	b := &Bot{api: api, chatID: chatID, runner: runner}

	if err := bus.SubscribeAsync(events.JobRunFinishedTopic, b.onJobRunFinished, false); err != nil {
		return nil, err
	}
	return b, nil
}

// Run handles updates until ctx is done.
func (b *Bot) Run(ctx context.Context) {

	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.tgApi.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.tgApi.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *botApi.Message) {
	if !message.IsCommand() {
		return
	}
	b.handleCommand(ctx, message.Command(), message.CommandArguments())
}

func (b *Bot) handleCommand(ctx context.Context, command string, args string) {

	var text string
	args = strings.TrimSpace(args)

	switch command {
	case runCommandName:
		text = b.startRun(ctx, args)
	case statusCommandName:
		text = b.runStatus(ctx, args)
	case helpCommandName, "start":
		text = "/run <config_id> - start a bulk scraping run\n/status <job_id> - show a run"
	default:
		text = "Unknown command!"
	}

	b.send(text)
}

func (b *Bot) startRun(ctx context.Context, configID string) string {
	run, err := b.runner.Start(ctx, configID)
	switch {
	case errors.Is(err, services.ErrConfigIDRequired):
		return "Usage: /run <config_id>"
	case errors.Is(err, services.ErrConfigNotFound):
		return fmt.Sprintf("Config %s not found", configID)
	case errors.Is(err, services.ErrInvalidConfig):
		return fmt.Sprintf("Config %s is invalid: %v", configID, err)
	case err != nil:
		log.Errorf("couldn't start run from telegram: %v", err)
		return "Internal error!"
	}
	return fmt.Sprintf("Run %s started", run.ID)
}

func (b *Bot) runStatus(ctx context.Context, jobID string) string {
	if jobID == "" {
		return "Usage: /status <job_id>"
	}

	run, err := b.runner.GetJobRun(ctx, jobID)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Errorf("couldn't get job run %s: %v", jobID, err)
		return "Internal error!"
	}
	if run == nil {
		return fmt.Sprintf("Run %s not found", jobID)
	}
	return formatRun(*run, "")
}

func (b *Bot) onJobRunFinished(event events.JobRunFinished) {
	b.send(formatRun(event.Run, event.ConfigName))
}

func (b *Bot) send(text string) {
	if _, err := b.api.Send(botApi.NewMessage(b.chatID, text)); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTelegram).
			Errorf("error occured while sending message: %v", err)
	}
}

func formatRun(run entities.JobRun, configName string) string {
	var sb strings.Builder

	title := run.ConfigID
	if configName != "" {
		title = configName
	}
	fmt.Fprintf(&sb, "Run %s (%s): %s\n", run.ID, title, run.Status)
	fmt.Fprintf(&sb, "Found: %d, published: %d, failed sites: %d", run.TotalFound, run.TotalPublished, run.ErrorsCount)

	if failed := services.FailedSites(run); len(failed) > 0 {
		fmt.Fprintf(&sb, "\nFailed: %s", strings.Join(failed, ", "))
	}
	if run.ErrorMessage != nil {
		fmt.Fprintf(&sb, "\nError: %s", *run.ErrorMessage)
	}
	return sb.String()
}
