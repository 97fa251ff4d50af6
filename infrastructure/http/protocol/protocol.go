// Package protocol holds the JSON payloads exchanged between the chat server and its clients.
package protocol

import (
	stderrors "errors"
	"messengy/domain"
	"messengy/errors"
)

const (
	RouteRegister      = "/auth/register"
	RouteLogin         = "/auth/login"
	RouteRefresh       = "/auth/refresh"
	RouteEvents        = "/ws"
	RouteQueryChannels = "/channels/query"
	RouteChannels      = "/channels"
	RouteUnread        = "/unread"
	RouteQueryUsers    = "/users/query"
	RouteDebugInspect  = "/debug/inspect"
)

func RouteMessages(channelID string) string { return RouteChannels + "/" + channelID + "/messages" }

func RouteRead(channelID string) string { return RouteChannels + "/" + channelID + "/read" }

type QueryChannelsRequest struct {
	Filter  domain.ChannelFilter `json:"filter"`
	Sort    domain.ChannelSort   `json:"sort"`
	Options domain.QueryOptions  `json:"options"`
}

type CreateChannelRequest struct {
	Type     string                 `json:"type"`
	Members  []string               `json:"members"`
	Metadata domain.ChannelMetadata `json:"metadata"`
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type QueryUsersRequest struct {
	Filter  domain.UserFilter   `json:"filter"`
	Sort    domain.UserSort     `json:"sort"`
	Options domain.QueryOptions `json:"options"`
}

type UnreadResponse struct {
	TotalUnreadCount int `json:"total_unread_count"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

// Error codes carried by ErrorResponse, one per sentinel crossing the wire.
const (
	CodeAuth               = "auth"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidPassword    = "invalid_password"
	CodeUserExists         = "user_exists"
	CodeChannelNotFound    = "channel_not_found"
	CodeInvalidMember      = "invalid_member"
	CodeDuplicateChannel   = "duplicate_channel"
	CodeBadRequest         = "bad_request"
	CodeInternal           = "internal"
)

var codes = []struct {
	code string
	err  error
}{
	{CodeInvalidCredentials, errors.ErrInvalidCredentials},
	{CodeInvalidPassword, errors.ErrInvalidPassword},
	{CodeUserExists, errors.ErrUserAlreadyExists},
	{CodeAuth, errors.ErrAuth},
	{CodeChannelNotFound, errors.ErrChannelNotFound},
	{CodeInvalidMember, errors.ErrInvalidMember},
	{CodeDuplicateChannel, errors.ErrDuplicateChannel},
}

// Code returns the wire code of err, CodeInternal when err is not part of the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if stderrors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Sentinel returns the error a wire code stands for, nil for unknown codes.
func Sentinel(code string) error {
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
