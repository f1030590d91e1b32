package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"nearmiss-bot/internal/dto"
	"nearmiss-bot/internal/entity"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandMessage(text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: 42},
		Chat: &tgbotapi.Chat{ID: 42},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(cmd)},
		},
	}
}

func TestToEvent(t *testing.T) {
	tests := []struct {
		name   string
		update tgbotapi.Update
		want   dto.Event
		ok     bool
	}{
		{
			name:   "command",
			update: tgbotapi.Update{Message: commandMessage("/Report")},
			want:   dto.Event{UserID: "42", Kind: dto.EventKindCommand, Command: "report"},
			ok:     true,
		},
		{
			name:   "command addressed to bot",
			update: tgbotapi.Update{Message: commandMessage("/cancel@nearmiss_bot")},
			want:   dto.Event{UserID: "42", Kind: dto.EventKindCommand, Command: "cancel"},
			ok:     true,
		},
		{
			name: "text",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: &tgbotapi.User{ID: 42}, Text: "Aina binti Yusof",
			}},
			want: dto.Event{UserID: "42", Kind: dto.EventKindText, Text: "Aina binti Yusof"},
			ok:   true,
		},
		{
			name: "button",
			update: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
				ID: "cb-1", From: &tgbotapi.User{ID: 7}, Data: "location|U1 Office",
			}},
			want: dto.Event{UserID: "7", Kind: dto.EventKindButton, CallbackID: "cb-1", CallbackData: "location|U1 Office"},
			ok:   true,
		},
		{
			name: "photo keeps every variant",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: &tgbotapi.User{ID: 42},
				Photo: []tgbotapi.PhotoSize{
					{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
					{FileID: "large", Width: 1280, Height: 960, FileSize: 90000},
				},
			}},
			want: dto.Event{UserID: "42", Kind: dto.EventKindPhoto, Media: &dto.MediaDescriptor{
				Kind: dto.EventKindPhoto,
				Variants: []dto.PhotoVariant{
					{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
					{FileID: "large", Width: 1280, Height: 960, FileSize: 90000},
				},
			}},
			ok: true,
		},
		{
			name: "video",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: &tgbotapi.User{ID: 42}, Video: &tgbotapi.Video{FileID: "vid"},
			}},
			want: dto.Event{UserID: "42", Kind: dto.EventKindVideo, Media: &dto.MediaDescriptor{
				Kind: dto.EventKindVideo, FileID: "vid",
			}},
			ok: true,
		},
		{
			name: "falls back to chat id",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				Chat: &tgbotapi.Chat{ID: 99}, Text: "hello",
			}},
			want: dto.Event{UserID: "99", Kind: dto.EventKindText, Text: "hello"},
			ok:   true,
		},
		{
			name:   "edited message is ignored",
			update: tgbotapi.Update{EditedMessage: &tgbotapi.Message{Text: "x"}},
		},
		{
			name: "sticker is ignored",
			update: tgbotapi.Update{Message: &tgbotapi.Message{
				From: &tgbotapi.User{ID: 42}, Sticker: &tgbotapi.Sticker{FileID: "s"},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToEvent(tt.update)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestReplyMarkup(t *testing.T) {
	inline := replyMarkup(dto.SendOptions{InlineKeyboard: [][]dto.InlineButton{
		{{Label: "Low", Token: "severity|Low"}, {Label: "High", Token: "severity|High"}},
	}})
	markup, ok := inline.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	require.NotNil(t, markup.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "severity|High", *markup.InlineKeyboard[0][1].CallbackData)

	reply, ok := replyMarkup(dto.SendOptions{ReplyKeyboard: []string{"Skip"}}).(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "Skip", reply.Keyboard[0][0].Text)
	assert.True(t, reply.OneTimeKeyboard)

	_, ok = replyMarkup(dto.SendOptions{RemoveKeyboard: true}).(tgbotapi.ReplyKeyboardRemove)
	assert.True(t, ok)

	assert.Nil(t, replyMarkup(dto.SendOptions{}))
}

type fakeBotAPI struct {
	mu    sync.Mutex
	calls map[string][]map[string]string
}

func newFakeBotAPI(t *testing.T) (*fakeBotAPI, *httptest.Server) {
	f := &fakeBotAPI{calls: map[string][]map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		f.mu.Lock()
		f.calls[method] = append(f.calls[method], form)
		f.mu.Unlock()

		var result interface{}
		switch method {
		case "getMe":
			result = map[string]interface{}{"id": 1, "is_bot": true, "first_name": "bot", "username": "nearmiss_bot"}
		case "sendMessage":
			result = map[string]interface{}{"message_id": 1, "date": 0, "chat": map[string]interface{}{"id": 42, "type": "private"}}
		case "getFile":
			result = map[string]interface{}{"file_id": form["file_id"], "file_unique_id": "u", "file_path": "photos/p.jpg"}
		default:
			result = true
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": result})
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeBotAPI) last(method string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.calls[method]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

func newTestClient(t *testing.T) (*Client, *fakeBotAPI) {
	f, srv := newFakeBotAPI(t)
	c, err := NewClient(Options{
		Token:        "TOKEN",
		APIEndpoint:  srv.URL + "/bot%s/%s",
		MediaBaseURL: "https://bot.example.com/",
	}, nil)
	require.NoError(t, err)
	return c, f
}

func TestClientSend(t *testing.T) {
	c, f := newTestClient(t)
	ctx := context.Background()

	err := c.Send(ctx, "42", "Pick one", dto.SendOptions{InlineKeyboard: [][]dto.InlineButton{
		{{Label: "U1 Office", Token: "location|U1 Office"}},
	}})
	require.NoError(t, err)

	call := f.last("sendMessage")
	require.NotNil(t, call)
	assert.Equal(t, "42", call["chat_id"])
	assert.Equal(t, "Pick one", call["text"])
	assert.Contains(t, call["reply_markup"], "location|U1 Office")

	err = c.Send(ctx, "not-a-number", "x", dto.SendOptions{})
	assert.ErrorIs(t, err, ErrInvalidChatID)
}

func TestClientAckAndFileURL(t *testing.T) {
	c, f := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.AckCallback(ctx, "cb-1", "That option is no longer valid."))
	call := f.last("answerCallbackQuery")
	require.NotNil(t, call)
	assert.Equal(t, "cb-1", call["callback_query_id"])

	require.NoError(t, c.AckCallback(ctx, "", ""))

	link, err := c.FileURL("large")
	require.NoError(t, err)
	assert.Equal(t, "https://api.telegram.org/file/botTOKEN/photos/p.jpg", link)
	assert.Equal(t, "large", f.last("getFile")["file_id"])
}

func TestResolveKeepsTokenOutOfReports(t *testing.T) {
	c, f := newTestClient(t)

	link, err := c.Resolve(context.Background(), dto.MediaRef{Kind: dto.EventKindPhoto, FileID: "AgACAgU-x_1"})
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/media/AgACAgU-x_1", link)
	assert.NotContains(t, link, "TOKEN")
	assert.Nil(t, f.last("getFile"), "resolving must not ask Telegram for a download link")

	report := entity.Report{Name: "Jane", MediaURL: link, UserID: "42"}
	for _, cell := range report.Row() {
		assert.NotContains(t, fmt.Sprint(cell), "TOKEN")
	}

	_, err = c.Resolve(context.Background(), dto.MediaRef{Kind: dto.EventKindVideo})
	assert.Error(t, err)
}

func TestClientSetWebhook(t *testing.T) {
	c, f := newTestClient(t)

	require.NoError(t, c.SetWebhook("https://bot.example.com/telegram/webhook", "s3cret"))
	call := f.last("setWebhook")
	require.NotNil(t, call)
	assert.Equal(t, "https://bot.example.com/telegram/webhook", call["url"])
	assert.Equal(t, "s3cret", call["secret_token"])
}
