package dto

import (
	"fmt"
	"strings"
)

// EventKind classifies an inbound chat event.
type EventKind string

const (
	EventKindCommand EventKind = "command"
	EventKindText    EventKind = "text"
	EventKindButton  EventKind = "button"
	EventKindPhoto   EventKind = "photo"
	EventKindVideo   EventKind = "video"
)

// Event is one inbound user action, independent of the chat transport.
type Event struct {
	UserID       string           `json:"user_id"`
	Kind         EventKind        `json:"kind"`
	Command      string           `json:"command,omitempty"`
	Text         string           `json:"text,omitempty"`
	CallbackID   string           `json:"callback_id,omitempty"`
	CallbackData string           `json:"callback_data,omitempty"`
	Media        *MediaDescriptor `json:"media,omitempty"`
}

// PhotoVariant is one resolution of a photo.
type PhotoVariant struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size"`
}

// MediaDescriptor carries transient file handles for a photo or video.
type MediaDescriptor struct {
	Kind     EventKind      `json:"kind"`
	FileID   string         `json:"file_id,omitempty"`
	Variants []PhotoVariant `json:"variants,omitempty"`
}

// MediaRef is the single file chosen from a descriptor.
type MediaRef struct {
	Kind   EventKind
	FileID string
}

// Best picks the highest-resolution photo variant, or the video file.
func (m *MediaDescriptor) Best() (MediaRef, bool) {
	if m == nil {
		return MediaRef{}, false
	}
	if m.Kind == EventKindVideo {
		return MediaRef{Kind: EventKindVideo, FileID: m.FileID}, m.FileID != ""
	}
	var best *PhotoVariant
	for i := range m.Variants {
		v := &m.Variants[i]
		if v.FileID == "" {
			continue
		}
		if best == nil || pixels(v) > pixels(best) ||
			(pixels(v) == pixels(best) && v.FileSize > best.FileSize) {
			best = v
		}
	}
	if best == nil {
		return MediaRef{}, false
	}
	return MediaRef{Kind: EventKindPhoto, FileID: best.FileID}, true
}

func pixels(v *PhotoVariant) int {
	return v.Width * v.Height
}

// InlineButton is a tappable option that answers with a callback token.
type InlineButton struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// SendOptions describes the keyboard that goes with an outbound message.
type SendOptions struct {
	ReplyKeyboard  []string         `json:"reply_keyboard,omitempty"`
	InlineKeyboard [][]InlineButton `json:"inline_keyboard,omitempty"`
	RemoveKeyboard bool             `json:"remove_keyboard,omitempty"`
}

const callbackSeparator = "|"

// CallbackToken binds a button value to the stage that rendered it.
func CallbackToken(stage, value string) string {
	return stage + callbackSeparator + value
}

// ParseCallbackToken splits a token produced by CallbackToken.
func ParseCallbackToken(token string) (stage, value string, err error) {
	parts := strings.SplitN(token, callbackSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed callback token %q", token)
	}
	return parts[0], parts[1], nil
}
