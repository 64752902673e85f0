package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/maxaizer/bulk-scraper/internal/events"
	"github.com/maxaizer/bulk-scraper/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const adminChatID = int64(42)

type mockApi struct {
	mu           sync.Mutex
	SentMessages []botApi.MessageConfig
}

func (m *mockApi) Send(chattable botApi.Chattable) (botApi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, chattable.(botApi.MessageConfig))
	return botApi.Message{}, nil
}

func (m *mockApi) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.SentMessages) == 0 {
		return ""
	}
	return m.SentMessages[len(m.SentMessages)-1].Text
}

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Start(ctx context.Context, configID string) (*entities.JobRun, error) {
	args := m.Called(ctx, configID)
	run, _ := args.Get(0).(*entities.JobRun)
	return run, args.Error(1)
}

func (m *mockRunner) GetJobRun(ctx context.Context, id string) (*entities.JobRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*entities.JobRun)
	return run, args.Error(1)
}

func newTestBot(t *testing.T, bus EventBus.Bus, runner jobRunner) (*Bot, *mockApi) {
	api := &mockApi{}
	b, err := newBot(api, adminChatID, bus, runner)
	require.NoError(t, err)
	return b, api
}

func Test_RunCommand_StartsRun(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Start", mock.Anything, "cfg-1").Return(&entities.JobRun{ID: "run-1"}, nil).Once()

	b, api := newTestBot(t, EventBus.New(), runner)
	b.handleCommand(context.Background(), runCommandName, " cfg-1 ")

	assert.Equal(t, "Run run-1 started", api.lastText())
	assert.Equal(t, adminChatID, api.SentMessages[0].ChatID)
	runner.AssertExpectations(t)
}

func Test_RunCommand_ReportsConfigErrors(t *testing.T) {
	runner := &mockRunner{}
	runner.On("Start", mock.Anything, "").Return(nil, services.ErrConfigIDRequired)
	runner.On("Start", mock.Anything, "missing").Return(nil, services.ErrConfigNotFound)
	runner.On("Start", mock.Anything, "broken").Return(nil, errors.New("db is down"))

	b, api := newTestBot(t, EventBus.New(), runner)

	b.handleCommand(context.Background(), runCommandName, "")
	assert.Equal(t, "Usage: /run <config_id>", api.lastText())

	b.handleCommand(context.Background(), runCommandName, "missing")
	assert.Equal(t, "Config missing not found", api.lastText())

	b.handleCommand(context.Background(), runCommandName, "broken")
	assert.Equal(t, "Internal error!", api.lastText())
}

func Test_StatusCommand(t *testing.T) {
	message := "job run cancelled: context canceled"
	runner := &mockRunner{}
	runner.On("GetJobRun", mock.Anything, "run-1").Return(&entities.JobRun{
		ID: "run-1", ConfigID: "cfg-1", Status: entities.JobFailed, TotalFound: 5, TotalPublished: 2,
		ErrorsCount: 1, ErrorMessage: &message,
		Results: entities.SiteResults{"B": {Status: entities.SiteFailed}, "A": {Status: entities.SiteCompleted}},
	}, nil)
	runner.On("GetJobRun", mock.Anything, "nope").Return(nil, nil)

	b, api := newTestBot(t, EventBus.New(), runner)

	b.handleCommand(context.Background(), statusCommandName, "run-1")
	assert.Equal(t, "Run run-1 (cfg-1): failed\nFound: 5, published: 2, failed sites: 1\nFailed: B\n"+
		"Error: job run cancelled: context canceled", api.lastText())

	b.handleCommand(context.Background(), statusCommandName, "nope")
	assert.Equal(t, "Run nope not found", api.lastText())
}

func Test_JobRunFinished_SendsSummary(t *testing.T) {
	bus := EventBus.New()
	_, api := newTestBot(t, bus, &mockRunner{})

	bus.Publish(events.JobRunFinishedTopic, events.JobRunFinished{
		Run:        entities.JobRun{ID: "run-1", ConfigID: "cfg-1", Status: entities.JobCompleted, TotalFound: 3, TotalPublished: 3},
		ConfigName: "Tech",
	})
	bus.WaitAsync()

	assert.Equal(t, "Run run-1 (Tech): completed\nFound: 3, published: 3, failed sites: 0", api.lastText())
}

func Test_UnknownCommand(t *testing.T) {
	b, api := newTestBot(t, EventBus.New(), &mockRunner{})
	b.handleCommand(context.Background(), "dance", "")
	assert.Equal(t, "Unknown command!", api.lastText())
}

func Test_NewBot_RequiresDependencies(t *testing.T) {
	_, err := newBot(&mockApi{}, adminChatID, nil, &mockRunner{})
	assert.Error(t, err)

	_, err = newBot(&mockApi{}, adminChatID, EventBus.New(), nil)
	assert.Error(t, err)
}
