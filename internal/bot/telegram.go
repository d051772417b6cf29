package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pokebot/pokebot/internal/flow"
	"github.com/pokebot/pokebot/internal/game/command"
)

// Telegram is the Transport backed by the Bot API.
type Telegram struct {
	api    *tgbotapi.BotAPI
	images *ImageCache
	logger *zap.Logger
}

// NewTelegram authenticates token against the Bot API.
//
// Postcondition: Returns a ready Telegram or an error when the token is rejected.
func NewTelegram(token string, images *ImageCache, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	logger.Info("telegram authorized", zap.String("bot", api.Self.UserName))
	return &Telegram{api: api, images: images, logger: logger}, nil
}

// UserName returns the bot's own username.
func (t *Telegram) UserName() string { return t.api.Self.UserName }

func markup(kb Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, row)
	}
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

// classify maps Bot API races onto flow.ErrTransient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		if apiErr.Code == 429 || strings.Contains(msg, "message is not modified") || strings.Contains(msg, "message to edit not found") {
			return fmt.Errorf("%w: %s", flow.ErrTransient, apiErr.Message)
		}
	}
	return err
}

// Send implements Transport.
func (t *Telegram) Send(ctx context.Context, out Outgoing) (MessageRef, error) {
	if out.Photo == "" {
		msg := tgbotapi.NewMessage(out.ChatID, out.Text)
		msg.ReplyToMessageID = out.ReplyTo
		if m := markup(out.Keyboard); m != nil {
			msg.ReplyMarkup = m
		}
		sent, err := t.api.Send(msg)
		if err != nil {
			return MessageRef{}, classify(err)
		}
		return MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
	}

	var ref MessageRef
	err := t.images.Send(ctx, out.Photo, func(file string, cached bool) (string, error) {
		var data tgbotapi.RequestFileData = tgbotapi.FileURL(file)
		if cached {
			data = tgbotapi.FileID(file)
		}
		photo := tgbotapi.NewPhoto(out.ChatID, data)
		photo.Caption = out.Text
		photo.ReplyToMessageID = out.ReplyTo
		if m := markup(out.Keyboard); m != nil {
			photo.ReplyMarkup = m
		}
		sent, err := t.api.Send(photo)
		if err != nil {
			return "", classify(err)
		}
		ref = MessageRef{ChatID: sent.Chat.ID, MessageID: sent.MessageID, Photo: true}
		if n := len(sent.Photo); n > 0 {
			return sent.Photo[n-1].FileID, nil
		}
		return "", nil
	})
	if err != nil {
		t.logger.Warn("photo send failed, falling back to text", zap.String("photo", out.Photo), zap.Error(err))
		out.Photo = ""
		return t.Send(ctx, out)
	}
	return ref, nil
}

// Edit implements Transport.
func (t *Telegram) Edit(_ context.Context, ref MessageRef, out Outgoing) error {
	var c tgbotapi.Chattable
	if ref.Photo {
		e := tgbotapi.NewEditMessageCaption(ref.ChatID, ref.MessageID, out.Text)
		e.ReplyMarkup = markup(out.Keyboard)
		c = e
	} else {
		e := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, out.Text)
		e.ReplyMarkup = markup(out.Keyboard)
		c = e
	}
	_, err := t.api.Request(c)
	return classify(err)
}

// Delete implements Transport.
func (t *Telegram) Delete(_ context.Context, ref MessageRef) error {
	_, err := t.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return classify(err)
}

// Answer implements Transport.
func (t *Telegram) Answer(_ context.Context, callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	_, err := t.api.Request(cb)
	return classify(err)
}

// Pin implements Transport.
func (t *Telegram) Pin(_ context.Context, ref MessageRef) error {
	_, err := t.api.Request(tgbotapi.PinChatMessageConfig{ChatID: ref.ChatID, MessageID: ref.MessageID, DisableNotification: true})
	return classify(err)
}

// Unpin implements Transport.
func (t *Telegram) Unpin(_ context.Context, ref MessageRef) error {
	_, err := t.api.Request(tgbotapi.UnpinChatMessageConfig{ChatID: ref.ChatID, MessageID: ref.MessageID})
	return classify(err)
}

// SetWebhook registers url with the Bot API, or removes the webhook when url is empty.
func (t *Telegram) SetWebhook(url string) error {
	if url == "" {
		_, err := t.api.Request(tgbotapi.DeleteWebhookConfig{})
		return err
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("building webhook: %w", err)
	}
	_, err = t.api.Request(wh)
	return err
}

// SetCommands publishes cmds as the client's slash-command menu.
func (t *Telegram) SetCommands(cmds []*command.Command) error {
	list := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		list = append(list, tgbotapi.BotCommand{Command: c.Name, Description: c.Help})
	}
	_, err := t.api.Request(tgbotapi.NewSetMyCommands(list...))
	return classify(err)
}

func convertUser(u *tgbotapi.User) User {
	if u == nil {
		return User{}
	}
	return User{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, IsBot: u.IsBot}
}

func convertMessage(m *tgbotapi.Message, depth int) *Message {
	if m == nil || m.Chat == nil {
		return nil
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	out := &Message{ChatID: m.Chat.ID, MessageID: m.MessageID, From: convertUser(m.From), Text: text}
	if depth == 0 {
		out.ReplyTo = convertMessage(m.ReplyToMessage, 1)
	}
	return out
}

// Convert turns a Bot API update into an Update.
//
// Postcondition: Returns false for update kinds the bot ignores.
func Convert(u tgbotapi.Update) (Update, bool) {
	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		cb := &Callback{ID: q.ID, From: convertUser(q.From), Data: q.Data}
		if q.Message != nil && q.Message.Chat != nil {
			cb.Message = MessageRef{ChatID: q.Message.Chat.ID, MessageID: q.Message.MessageID, Photo: len(q.Message.Photo) > 0}
		}
		return Update{Callback: cb}, true
	case u.Message != nil:
		if m := convertMessage(u.Message, 0); m != nil && m.From.ID != 0 {
			return Update{Message: m}, true
		}
	}
	return Update{}, false
}

// Poller is the long-polling update loop. It implements server.Service.
type Poller struct {
	tg      *Telegram
	handler func(context.Context, Update)
	timeout int
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a Poller that passes every update to handler on its own goroutine.
func NewPoller(tg *Telegram, handler func(context.Context, Update), timeoutSeconds int, logger *zap.Logger) *Poller {
	return &Poller{tg: tg, handler: handler, timeout: timeoutSeconds, logger: logger}
}

// Start blocks receiving updates until Stop.
func (p *Poller) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	if err := p.tg.SetWebhook(""); err != nil {
		p.logger.Warn("removing webhook", zap.Error(err))
	}
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = p.timeout
	updates := p.tg.api.GetUpdatesChan(cfg)
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-updates:
			if !ok {
				return nil
			}
			upd, ok := Convert(raw)
			if !ok {
				continue
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.handler(context.WithoutCancel(ctx), upd)
			}()
		}
	}
}

// Stop ends the loop and waits for in-flight handlers.
func (p *Poller) Stop() {
	p.tg.api.StopReceivingUpdates()
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}
