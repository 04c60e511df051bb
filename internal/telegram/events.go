package telegram

import (
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/ion/internal/protocol"
)

// eventFromUpdate converts a text message or channel post. Other updates
// yield nil.
func eventFromUpdate(update *models.Update, selfID int64) *protocol.Event {
	if update == nil {
		return nil
	}

	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Text == "" {
		return nil
	}

	ev := &protocol.Event{
		UpdateID:  update.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.ID,
		Text:      msg.Text,
		SentAt:    time.Unix(int64(msg.Date), 0).UTC(),
	}
	if msg.From != nil {
		ev.SenderID = msg.From.ID
		// Only reachable with servers that echo the bot's own messages.
		ev.Outgoing = selfID != 0 && msg.From.ID == selfID
	}
	return ev
}

func identityFromUser(u *models.User) protocol.Identity {
	return protocol.Identity{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}
