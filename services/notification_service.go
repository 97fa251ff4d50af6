package services

import (
	"context"
	"fmt"
	"messengy/contract"
	"messengy/domain"
	"messengy/projection"
	"time"
)

// NotificationService lists the latest conversations as "new chat" notifications.
type NotificationService struct {
	session     contract.ISession
	projector   projection.Projector
	channelType string
}

func NewNotificationService(session contract.ISession, projector projection.Projector) *NotificationService {
	return &NotificationService{session: session, projector: projector, channelType: domain.DefaultChannelType}
}

func (s *NotificationService) Recent(ctx context.Context, identity domain.Identity, now time.Time) ([]projection.NotificationRow, error) {
	conn, err := connectionFor(s.session, identity)
	if err != nil {
		return nil, err
	}
	channels, err := conn.QueryChannels(ctx,
		domain.ChannelFilter{Type: s.channelType, Members: []string{identity.ID}},
		domain.ChannelSort{LastMessageAt: domain.Descending},
		domain.QueryOptions{Limit: NotificationLimit},
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications of %s: %w", identity.ID, err)
	}
	return s.projector.NotificationRows(domain.OrderChannels(channels), identity.ID, now), nil
}
