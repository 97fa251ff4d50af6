package services

import (
	"context"
	"fmt"
	"messengy/contract"
	"messengy/domain"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type sendRequest struct {
	ChannelID string `validate:"required"`
	Text      string `validate:"required,max=5000"`
}

// ConversationService posts into a channel and acknowledges what was read.
// Both operations trigger server events the channel synchronizer reacts to.
type ConversationService struct {
	session contract.ISession
}

func NewConversationService(session contract.ISession) *ConversationService {
	return &ConversationService{session: session}
}

func (s *ConversationService) Send(ctx context.Context, identity domain.Identity, channelID, text string) (domain.Message, error) {
	if err := validate.Struct(sendRequest{ChannelID: channelID, Text: text}); err != nil {
		return domain.Message{}, fmt.Errorf("invalid message: %w", err)
	}
	conn, err := connectionFor(s.session, identity)
	if err != nil {
		return domain.Message{}, err
	}
	return conn.SendMessage(ctx, channelID, text)
}

func (s *ConversationService) MarkRead(ctx context.Context, identity domain.Identity, channelID string) error {
	conn, err := connectionFor(s.session, identity)
	if err != nil {
		return err
	}
	return conn.MarkRead(ctx, channelID)
}
