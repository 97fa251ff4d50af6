// Package search indexes the channel list view for the chats search bar.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"messengy/domain"
	"messengy/projection"
	"strings"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/samber/lo"
)

const (
	fieldTitle   = "title"
	fieldMembers = "members"
	fieldPreview = "preview"
	fieldID      = "_id"

	defaultLimit = 10
)

// ChannelIndex is an in-memory bluge index holding exactly the last indexed view.
type ChannelIndex struct {
	log     *slog.Logger
	mu      sync.Mutex
	writer  *bluge.Writer
	indexed map[string]struct{}
}

func NewChannelIndex(log *slog.Logger) (*ChannelIndex, error) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	if err != nil {
		return nil, fmt.Errorf("opening channel index: %w", err)
	}
	return &ChannelIndex{log: log, writer: writer, indexed: make(map[string]struct{})}, nil
}

// Index replaces the index content with channels. Channels gone from the view are removed.
func (i *ChannelIndex) Index(_ context.Context, selfID string, channels []domain.Channel) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := bluge.NewBatch()
	current := make(map[string]struct{}, len(channels))
	for _, c := range channels {
		current[c.ID] = struct{}{}
		names := lo.FilterMap(c.Members, func(u domain.User, _ int) (string, bool) {
			return u.Name, u.ID != selfID && u.Name != ""
		})
		doc := bluge.NewDocument(c.ID).
			AddField(bluge.NewTextField(fieldTitle, projection.DisplayName(c, selfID))).
			AddField(bluge.NewTextField(fieldMembers, strings.Join(names, " "))).
			AddField(bluge.NewTextField(fieldPreview, projection.LastMessagePreview(c)))
		batch.Update(doc.ID(), doc)
	}
	for id := range i.indexed {
		if _, ok := current[id]; !ok {
			batch.Delete(bluge.NewDocument(id).ID())
		}
	}

	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("indexing %d channels: %w", len(channels), err)
	}
	i.indexed = current
	i.log.Debug("Channel index updated", "channels", len(channels))
	return nil
}

// Search returns channel ids by relevance. Each term matches whole words of the
// title, member names and preview, or a prefix of the title and member names.
func (i *ChannelIndex) Search(ctx context.Context, text string, limit int) ([]string, error) {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	query := bluge.NewBooleanQuery().SetMinShould(1)
	for _, term := range terms {
		query.AddShould(
			bluge.NewMatchQuery(term).SetField(fieldTitle).SetBoost(2),
			bluge.NewMatchQuery(term).SetField(fieldMembers),
			bluge.NewMatchQuery(term).SetField(fieldPreview),
			bluge.NewPrefixQuery(term).SetField(fieldTitle),
			bluge.NewPrefixQuery(term).SetField(fieldMembers),
		)
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	matches, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", text, err)
	}

	var ids []string
	match, err := matches.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == fieldID {
				ids = append(ids, string(value))
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = matches.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return ids, nil
}

func (i *ChannelIndex) Close() error {
	return i.writer.Close()
}

// Terms splits a raw search bar input into lower-cased terms. Slash commands are ignored.
func Terms(input string) []string {
	return lo.FilterMap(strings.Fields(input), func(part string, _ int) (string, bool) {
		return strings.ToLower(part), !strings.HasPrefix(part, "/")
	})
}
