//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"messengy/domain"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision, so workers don't have to name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// ICredentialProvider hands out short-lived credentials for the signed in identity.
type ICredentialProvider interface {
	Credential(ctx context.Context, purpose string) (domain.Credential, error)
}

// IIdentityProvider is the external identity session provider.
type IIdentityProvider interface {
	ICredentialProvider
	CurrentIdentity() (domain.Identity, bool)
	// Transitions subscribes to sign-in and sign-out transitions.
	// The returned func cancels the subscription and closes the channel.
	Transitions() (<-chan domain.AuthTransition, func())
}

// IChatBackend is the entry point of the external chat SDK.
type IChatBackend interface {
	Connect(ctx context.Context, identity domain.Identity, credential domain.Credential) (IConnection, error)
}

// IConnection is one live chat connection bound to a single identity.
type IConnection interface {
	QueryChannels(ctx context.Context, filter domain.ChannelFilter, sort domain.ChannelSort, opts domain.QueryOptions) ([]domain.Channel, error)
	CreateChannel(ctx context.Context, channelType string, members []string, metadata domain.ChannelMetadata) (domain.Channel, error)
	SendMessage(ctx context.Context, channelID, text string) (domain.Message, error)
	MarkRead(ctx context.Context, channelID string) error
	// CountUnread is the backend side total of unread messages for the connected user.
	CountUnread(ctx context.Context) (int, error)
	QueryUsers(ctx context.Context, filter domain.UserFilter, sort domain.UserSort, opts domain.QueryOptions) ([]domain.User, error)
	// Events is closed once the connection is closed.
	Events() <-chan domain.Event
	Close(ctx context.Context) error
}

// ISession is the view of the chat session manager consumed by the channel layer.
type ISession interface {
	State() domain.ConnectionState
	Identity() (domain.Identity, bool)
	Connection() (IConnection, error)
	Events() <-chan domain.Event
}

// IChannelCache keeps the last known channel list per identity for degraded reads.
type IChannelCache interface {
	SaveChannels(userID string, channels []domain.Channel) error
	LoadChannels(userID string) ([]domain.Channel, error)
}

// IChannelIndex is a full-text index over the channel list view.
type IChannelIndex interface {
	Index(ctx context.Context, selfID string, channels []domain.Channel) error
	Search(ctx context.Context, text string, limit int) ([]string, error)
}

// ICensor masks forbidden words in user visible text.
type ICensor interface {
	Censor(text string) string
}

// ICredentialIssuer signs credentials on behalf of an identity provider.
type ICredentialIssuer interface {
	Issue(ctx context.Context, identity domain.Identity, purpose string) (domain.Credential, error)
}

// IUserDirectory registers users on the chat backend so they can be found and added to channels.
type IUserDirectory interface {
	UpsertUser(ctx context.Context, user domain.User) error
}
