package telegram

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"fxbot/internal/service"
)

// Bot replies.
const (
	MsgHistoryPending  = "Wait finishing of process"
	MsgHistoryReady    = "Click button to get graph"
	MsgChartExpired    = "Chart is no longer available."
	MsgTemporaryFailed = "Exchange rates are temporarily unavailable, try again later."

	detailsButton = "Details"
	retryDelay    = 5 * time.Second
)

// API is the subset of the Bot API the router needs.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (*Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, queryID, text string, showAlert bool) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	SendPhoto(ctx context.Context, chatID int64, path string) error
}

// Bot routes chat commands to the rate service.
type Bot struct {
	api         API
	svc         service.RateServiceInterface
	log         *zap.SugaredLogger
	pollTimeout time.Duration
}

// NewBot creates a Bot.
func NewBot(api API, svc service.RateServiceInterface, pollTimeout time.Duration, logger *zap.SugaredLogger) *Bot {
	return &Bot{
		api:         api,
		svc:         svc,
		log:         logger,
		pollTimeout: pollTimeout,
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Infow("Telegram polling started")
	var offset int64

	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				b.log.Infow("Telegram polling stopped")
				return nil
			}
			b.log.Warnw("Polling request failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate dispatches a single update. Edited messages are ignored.
// A panicking handler is logged and does not stop polling.
func (b *Bot) HandleUpdate(ctx context.Context, u Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("Update handler panicked", "update_id", u.UpdateID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleDetails(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.Text != "":
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *Message) {
	text := strings.TrimSpace(m.Text)
	cmd := command(text)
	b.log.Infow("Command received", "chat_id", m.Chat.ID, "command", cmd)

	switch cmd {
	case "/list", "/lst":
		list, err := b.svc.ListRates(ctx)
		if err != nil {
			b.replyError(ctx, m.Chat.ID, err)
			return
		}
		b.reply(ctx, m.Chat.ID, list)
	case "/exchange":
		res, err := b.svc.Exchange(ctx, m.Text)
		if err != nil {
			b.replyError(ctx, m.Chat.ID, err)
			return
		}
		b.reply(ctx, m.Chat.ID, res.Text)
	case "/history":
		b.handleHistory(ctx, m.Chat.ID, text)
	case "/start", "/help", "":
		b.reply(ctx, m.Chat.ID, service.HelpText)
	default:
		b.log.Debugw("Unknown command ignored", "chat_id", m.Chat.ID, "command", cmd)
	}
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64, text string) {
	if _, err := service.ParseHistory(text); err != nil {
		b.replyError(ctx, chatID, err)
		return
	}

	placeholder, err := b.api.SendMessage(ctx, chatID, MsgHistoryPending, nil)
	if err != nil {
		b.log.Errorw("Failed to send placeholder", "chat_id", chatID, "error", err)
		return
	}

	if _, err := b.svc.RequestHistory(ctx, text, chatID, placeholder.MessageID); err != nil {
		b.log.Errorw("History request failed", "chat_id", chatID, "error", err)
		if err := b.NotifyHistoryReady(ctx, chatID, placeholder.MessageID, service.UnavailableArtifact()); err != nil {
			b.log.Errorw("Failed to finish placeholder", "chat_id", chatID, "error", err)
		}
	}
}

// NotifyHistoryReady turns the placeholder message into the "Details" button for artifact.
func (b *Bot) NotifyHistoryReady(ctx context.Context, chatID, messageID int64, artifact service.Artifact) error {
	return b.api.EditMessageText(ctx, chatID, messageID, MsgHistoryReady, detailsKeyboard(artifact.Token))
}

func (b *Bot) handleDetails(ctx context.Context, q *CallbackQuery) {
	artifact, err := b.svc.ResolveArtifact(ctx, q.Data)
	if err != nil {
		b.log.Errorw("Artifact lookup failed", "token", q.Data, "error", err)
		b.answer(ctx, q.ID, MsgChartExpired, true)
		return
	}

	switch artifact.Status {
	case service.ArtifactUnavailable:
		b.answer(ctx, q.ID, service.MsgNoData, true)
	case service.ArtifactReady:
		if q.Message != nil {
			if err := b.api.SendPhoto(ctx, q.Message.Chat.ID, artifact.Path); err != nil {
				b.log.Errorw("Failed to send chart", "token", artifact.Token, "error", err)
			}
		}
		b.answer(ctx, q.ID, "", false)
	default:
		b.answer(ctx, q.ID, MsgChartExpired, true)
		return
	}

	if q.Message != nil {
		if err := b.api.DeleteMessage(ctx, q.Message.Chat.ID, q.Message.MessageID); err != nil {
			b.log.Warnw("Failed to delete message", "chat_id", q.Message.Chat.ID, "error", err)
		}
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.api.SendMessage(ctx, chatID, text, nil); err != nil {
		b.log.Errorw("Failed to send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyError(ctx context.Context, chatID int64, err error) {
	if vErr, ok := service.AsValidationError(err); ok {
		b.reply(ctx, chatID, vErr.Message)
		return
	}
	b.log.Errorw("Command failed", "chat_id", chatID, "error", err)
	b.reply(ctx, chatID, MsgTemporaryFailed)
}

func (b *Bot) answer(ctx context.Context, queryID, text string, alert bool) {
	if err := b.api.AnswerCallbackQuery(ctx, queryID, text, alert); err != nil {
		b.log.Warnw("Failed to answer callback", "query_id", queryID, "error", err)
	}
}

// command extracts the lower-cased command of a message, dropping any "@botname" suffix.
// Plain text yields "".
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

func detailsKeyboard(token string) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{
		{{Text: detailsButton, CallbackData: token}},
	}}
}

var _ API = (*Client)(nil)
