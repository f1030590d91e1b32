package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	logModule = "TELEGRAM"

	// SecretHeader carries the webhook secret on every delivery.
	SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

	// MediaPathPrefix is where the server streams attachments by file id.
	MediaPathPrefix = "/media/"

	pollTimeoutSeconds = 60
)

var ErrInvalidChatID = errors.New("invalid chat id")

type Options struct {
	Token string
	// APIEndpoint overrides tgbotapi.APIEndpoint, e.g. for a local Bot API server.
	APIEndpoint string
	// MediaBaseURL is the public address of this bot's HTTP server.
	MediaBaseURL string
	Debug        bool
}

// Client is the Telegram side of the bot: it sends replies, answers
// callback queries, resolves file handles and receives updates.
type Client struct {
	bot          *tgbotapi.BotAPI
	mediaBaseURL string
	logger       logger.ILogger
}

func NewClient(opts Options, log logger.ILogger) (*Client, error) {
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(opts.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = opts.Debug

	if log == nil {
		log = logger.NewNopLogger()
	}
	log.Info(logModule, "Authorized on account", map[string]interface{}{"username": bot.Self.UserName})

	return &Client{
		bot:          bot,
		mediaBaseURL: strings.TrimRight(opts.MediaBaseURL, "/"),
		logger:       log,
	}, nil
}

func (c *Client) Send(_ context.Context, userID string, text string, opts dto.SendOptions) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidChatID, userID)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if markup := replyMarkup(opts); markup != nil {
		msg.ReplyMarkup = markup
	}

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %s: %w", userID, err)
	}
	return nil
}

func (c *Client) AckCallback(_ context.Context, callbackID string, text string) error {
	if callbackID == "" {
		return nil
	}
	if _, err := c.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback %s: %w", callbackID, err)
	}
	return nil
}

// Resolve returns a link to the file on this bot's own server. Telegram's
// download links carry the bot token and expire after about an hour; file
// ids do not, so the server looks the file up again on every request.
func (c *Client) Resolve(_ context.Context, ref dto.MediaRef) (string, error) {
	if ref.FileID == "" {
		return "", fmt.Errorf("empty %s file id", ref.Kind)
	}
	return c.mediaBaseURL + MediaPathPrefix + url.PathEscape(ref.FileID), nil
}

// FileURL returns Telegram's short-lived download link. It embeds the bot
// token and must not leave the process.
func (c *Client) FileURL(fileID string) (string, error) {
	link, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to look up file %s: %w", fileID, err)
	}
	return link, nil
}

// Poll long-polls for updates and hands each one to handle until ctx ends.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, dto.Event) error) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := c.bot.GetUpdatesChan(u)
	defer c.bot.StopReceivingUpdates()

	c.logger.Info(logModule, "Polling for updates", nil)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			event, ok := ToEvent(update)
			if !ok {
				continue
			}
			if err := handle(ctx, event); err != nil {
				c.logger.Error(logModule, "Failed to hand off update", map[string]interface{}{
					"update_id": update.UpdateID,
					"error":     err.Error(),
				})
			}
		}
	}
}

// SetWebhook registers link with Telegram. A non-empty secret is echoed back
// by Telegram in SecretHeader.
func (c *Client) SetWebhook(link, secret string) error {
	params := tgbotapi.Params{"url": link}
	params.AddNonEmpty("secret_token", secret)

	resp, err := c.bot.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("failed to set webhook: %s", resp.Description)
	}
	c.logger.Info(logModule, "Webhook registered", map[string]interface{}{"url": link})
	return nil
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook() error {
	if _, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

func replyMarkup(opts dto.SendOptions) interface{} {
	switch {
	case len(opts.InlineKeyboard) > 0:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(opts.InlineKeyboard))
		for _, row := range opts.InlineKeyboard {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token))
			}
			rows = append(rows, buttons)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	case len(opts.ReplyKeyboard) > 0:
		buttons := make([]tgbotapi.KeyboardButton, 0, len(opts.ReplyKeyboard))
		for _, label := range opts.ReplyKeyboard {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(buttons...))
		kb.OneTimeKeyboard = true
		return kb
	case opts.RemoveKeyboard:
		return tgbotapi.NewRemoveKeyboard(false)
	}
	return nil
}

// ToEvent maps an update to a chat event. Updates the bot does not act on
// (edits, channel posts, stickers) report false.
func ToEvent(update tgbotapi.Update) (dto.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil {
			return dto.Event{}, false
		}
		return dto.Event{
			UserID:       formatID(cq.From.ID),
			Kind:         dto.EventKindButton,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}, true
	}

	msg := update.Message
	if msg == nil {
		return dto.Event{}, false
	}

	var userID string
	switch {
	case msg.From != nil:
		userID = formatID(msg.From.ID)
	case msg.Chat != nil:
		userID = formatID(msg.Chat.ID)
	default:
		return dto.Event{}, false
	}

	switch {
	case msg.IsCommand():
		return dto.Event{
			UserID:  userID,
			Kind:    dto.EventKindCommand,
			Command: strings.ToLower(msg.Command()),
			Text:    msg.CommandArguments(),
		}, true
	case len(msg.Photo) > 0:
		variants := make([]dto.PhotoVariant, 0, len(msg.Photo))
		for _, p := range msg.Photo {
			variants = append(variants, dto.PhotoVariant{
				FileID:   p.FileID,
				Width:    p.Width,
				Height:   p.Height,
				FileSize: p.FileSize,
			})
		}
		return dto.Event{
			UserID: userID,
			Kind:   dto.EventKindPhoto,
			Text:   msg.Caption,
			Media:  &dto.MediaDescriptor{Kind: dto.EventKindPhoto, Variants: variants},
		}, true
	case msg.Video != nil:
		return dto.Event{
			UserID: userID,
			Kind:   dto.EventKindVideo,
			Text:   msg.Caption,
			Media:  &dto.MediaDescriptor{Kind: dto.EventKindVideo, FileID: msg.Video.FileID},
		}, true
	case msg.Text != "":
		return dto.Event{
			UserID: userID,
			Kind:   dto.EventKindText,
			Text:   msg.Text,
		}, true
	}
	return dto.Event{}, false
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
