package models

// Type classifies a message by its content at creation time. It is derived
// once from the (text, image) pair and never changes afterwards.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
	TypeMixed Type = "mixed"
)

type Message struct {
	ID          string `json:"id"`
	Text        string `json:"text,omitempty"`
	SenderID    string `json:"sender_id"`
	SenderEmail string `json:"sender_email,omitempty"`
	// TS is the creation timestamp (ns), assigned by the store so client
	// clock skew cannot reorder the log.
	TS   int64 `json:"ts"`
	Type Type  `json:"type"`
	// ImageURL/ThumbnailURL are present iff Type is image or mixed.
	ImageURL     string `json:"image_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	// ReadBy maps a user id to the time (ns) that user first read the
	// message. Keys are only ever added; an existing entry is never
	// rewritten or removed.
	ReadBy map[string]int64 `json:"read_by,omitempty"`
}

// DeriveType computes the message type from its content. The mapping is
// total: ("hi", "") -> text; ("", url) -> image; ("hi", url) -> mixed.
func DeriveType(text, imageURL string) Type {
	switch {
	case imageURL == "":
		return TypeText
	case text == "":
		return TypeImage
	default:
		return TypeMixed
	}
}

// HasRead reports whether userID already holds a read receipt on m.
func (m *Message) HasRead(userID string) bool {
	if m.ReadBy == nil {
		return false
	}
	_, ok := m.ReadBy[userID]
	return ok
}

// OthersReadCount returns the number of readers excluding the viewer. The
// sender never inserts itself into ReadBy, so for the sender this counts
// every recipient that has seen the message.
func (m *Message) OthersReadCount(viewerID string) int {
	n := 0
	for k := range m.ReadBy {
		if k != viewerID {
			n++
		}
	}
	return n
}

// ReadByOthers reports whether anyone besides the viewer has read m.
func (m *Message) ReadByOthers(viewerID string) bool {
	return m.OthersReadCount(viewerID) > 0
}
