package messaging

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// 死信原因
const (
	ReasonMalformed        = "malformed"
	ReasonUnknownEvent     = "unknown_event"
	ReasonRejected         = "rejected"
	ReasonRetriesExhausted = "retries_exhausted"
)

// DeadLetter 死信条目
//
// 字段平铺写入死信流，XRANGE 即可按事件类型与资产排查。
type DeadLetter struct {
	SourceStream string
	StreamID     string
	MessageID    string
	EventType    string
	AssetID      string
	Reason       string
	Error        string
	Attempts     int
	Data         string
	FailedAt     time.Time
}

func (d *DeadLetter) values() map[string]any {
	return map[string]any{
		"source_stream": d.SourceStream,
		"stream_id":     d.StreamID,
		"message_id":    d.MessageID,
		"event_type":    d.EventType,
		"asset_id":      d.AssetID,
		"reason":        d.Reason,
		"error":         d.Error,
		"attempts":      strconv.Itoa(d.Attempts),
		"data":          d.Data,
		"failed_at":     d.FailedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ParseDeadLetter 从死信流条目还原
func ParseDeadLetter(xmsg redis.XMessage) (*DeadLetter, error) {
	str := func(key string) string {
		s, _ := xmsg.Values[key].(string)
		return s
	}
	d := &DeadLetter{
		SourceStream: str("source_stream"),
		StreamID:     str("stream_id"),
		MessageID:    str("message_id"),
		EventType:    str("event_type"),
		AssetID:      str("asset_id"),
		Reason:       str("reason"),
		Error:        str("error"),
		Data:         str("data"),
	}
	if d.Reason == "" {
		return nil, fmt.Errorf("dead letter %s has no reason", xmsg.ID)
	}
	if raw := str("attempts"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("dead letter %s: invalid attempts %q", xmsg.ID, raw)
		}
		d.Attempts = n
	}
	if raw := str("failed_at"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("dead letter %s: invalid failed_at %q", xmsg.ID, raw)
		}
		d.FailedAt = t
	}
	return d, nil
}

// subjectAssetID 事件涉及的资产，优先取元数据
func subjectAssetID(msg *Message) string {
	if id := msg.GetMetadata("asset_id"); id != "" {
		return id
	}
	var subject struct {
		AssetID       string `json:"asset_id"`
		SourceAssetID string `json:"source_asset_id"`
	}
	if len(msg.Payload) == 0 || json.Unmarshal(msg.Payload, &subject) != nil {
		return ""
	}
	if subject.AssetID != "" {
		return subject.AssetID
	}
	return subject.SourceAssetID
}
