package domain

// ChannelFilter selects channels of a type containing every listed member.
type ChannelFilter struct {
	Type    string   `json:"type,omitempty"`
	Members []string `json:"members,omitempty"`
}

type SortDirection int

const (
	Descending SortDirection = -1
	Ascending  SortDirection = 1
)

// ChannelSort orders query results by last_message_at.
type ChannelSort struct {
	LastMessageAt SortDirection `json:"last_message_at"`
}

// QueryOptions mirrors the chat backend paging and watch options.
type QueryOptions struct {
	Limit  int  `json:"limit,omitempty"`
	Offset int  `json:"offset,omitempty"`
	Watch  bool `json:"watch"`
	State  bool `json:"state"`
}

// UserFilter excludes the listed users from a user query.
type UserFilter struct {
	ExcludeIDs []string `json:"exclude_ids,omitempty"`
}

// UserSort orders users by last activity.
type UserSort struct {
	LastActive SortDirection `json:"last_active"`
}
