package telegrambot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestSourceFor(t *testing.T) {
	tests := []struct {
		name string
		chat *tgbotapi.Chat
		want string
	}{
		{
			name: "public username",
			chat: &tgbotapi.Chat{ID: 123, UserName: "PromoHardware"},
			want: "@PromoHardware",
		},
		{
			name: "private chat",
			chat: &tgbotapi.Chat{ID: -100456},
			want: "chat:-100456",
		},
		{
			name: "nil chat",
			chat: nil,
			want: "chat:unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sourceFor(tt.chat))
		})
	}
}
