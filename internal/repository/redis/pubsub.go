package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type SectionsPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewSectionsPubSub(rdb *redis.Client) *SectionsPubSub {
	return &SectionsPubSub{
		rdb:     rdb,
		channel: ChannelSectionsChanged(),
	}
}

type sectionChangedMsg struct {
	Type      string `json:"type"`
	EventID   int64  `json:"event_id"`
	SectionID int64  `json:"section_id"`
	TsUnix    int64  `json:"ts_unix"`
}

func (p *SectionsPubSub) PublishSectionChanged(ctx context.Context, eventID, sectionID int64) error {
	msg := sectionChangedMsg{
		Type:      "section_changed",
		EventID:   eventID,
		SectionID: sectionID,
		TsUnix:    time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *SectionsPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, eventID, sectionID int64)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev sectionChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.SectionID != 0 {
				handler(ctx, ev.EventID, ev.SectionID)
			}
		}
	}
}
