package chat

import (
	"sort"
	"strconv"
	"time"
	"unicode/utf8"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a session transcript. Size is the character count
// of the content.
type Message struct {
	Role      Role      `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Size      int       `bson:"size" json:"size"`
}

// NewMessage stamps a turn. Timestamps are truncated to millisecond
// precision so a message round-tripped through the store fingerprints
// identically to its in-memory original.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: now.Truncate(time.Millisecond),
		Size:      utf8.RuneCountInString(content),
	}
}

// Fingerprint identifies a message for dedup-on-write: the
// (role, content, timestamp) triple.
func (m Message) Fingerprint() string {
	return string(m.Role) + "|" + m.Content + "|" + strconv.FormatInt(m.Timestamp.UnixMilli(), 10)
}

// SortByTimestamp orders a transcript ascending by timestamp, stably, so
// equal-timestamp turns keep their stored order.
func SortByTimestamp(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}
