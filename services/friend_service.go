package services

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/contract"
	"messengy/domain"
	"messengy/errors"
)

const (
	SuggestionLimit   = 20
	NotificationLimit = 10
)

// ChannelCreator is the part of the channel synchronizer starting a conversation needs.
type ChannelCreator interface {
	CreateChannel(ctx context.Context, identity domain.Identity, members []string, metadata domain.ChannelMetadata) (domain.Channel, error)
}

// FriendService drives friend discovery: who to talk to, and opening the conversation.
type FriendService struct {
	log      *slog.Logger
	session  contract.ISession
	channels ChannelCreator
}

func NewFriendService(log *slog.Logger, session contract.ISession, channels ChannelCreator) *FriendService {
	return &FriendService{log: log, session: session, channels: channels}
}

// Suggestions lists other users, most recently active first.
func (s *FriendService) Suggestions(ctx context.Context, identity domain.Identity) ([]domain.User, error) {
	conn, err := connectionFor(s.session, identity)
	if err != nil {
		return nil, err
	}
	users, err := conn.QueryUsers(ctx,
		domain.UserFilter{ExcludeIDs: []string{identity.ID}},
		domain.UserSort{LastActive: domain.Descending},
		domain.QueryOptions{Limit: SuggestionLimit},
	)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	return users, nil
}

// StartChat opens a direct conversation with target, named after both participants.
func (s *FriendService) StartChat(ctx context.Context, identity domain.Identity, target domain.User) (domain.Channel, error) {
	if target.ID == identity.ID {
		return domain.Channel{}, fmt.Errorf("%w: cannot start a chat with yourself", errors.ErrChannelCreate)
	}
	metadata := domain.ChannelMetadata{Name: fmt.Sprintf("%s, %s", identity.DisplayName, target.Name)}
	channel, err := s.channels.CreateChannel(ctx, identity, []string{identity.ID, target.ID}, metadata)
	if err != nil {
		return domain.Channel{}, err
	}
	s.log.Info("Chat started", "user_id", identity.ID, "with", target.ID, "channel_id", channel.ID)
	return channel, nil
}

func connectionFor(session contract.ISession, identity domain.Identity) (contract.IConnection, error) {
	if current, ok := session.Identity(); ok && current.ID != identity.ID {
		return nil, fmt.Errorf("%w: session is bound to %s, not %s", errors.ErrNotConnected, current.ID, identity.ID)
	}
	return session.Connection()
}
