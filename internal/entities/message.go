package entities

import "time"

// MessageType distinguishes personal deliveries from group publications.
type MessageType string

const (
	MessagePersonal MessageType = "PERSONAL"
	MessageGroup    MessageType = "GROUP"
)

// ContentKind is what the sender actually submitted.
type ContentKind string

const (
	ContentText      ContentKind = "TEXT"
	ContentPhoto     ContentKind = "PHOTO"
	ContentVideo     ContentKind = "VIDEO"
	ContentDocument  ContentKind = "DOCUMENT"
	ContentSticker   ContentKind = "STICKER"
	ContentVoice     ContentKind = "VOICE"
	ContentVideoNote ContentKind = "VIDEO_NOTE"
	ContentAnimation ContentKind = "ANIMATION"
)

// MessageStatus is the moderation lifecycle. Only group messages move
// through PENDING; personal messages are DELIVERED from the start.
type MessageStatus string

const (
	StatusDelivered     MessageStatus = "DELIVERED"
	StatusPending       MessageStatus = "PENDING"
	StatusApproved      MessageStatus = "APPROVED"
	StatusRejected      MessageStatus = "REJECTED"
	StatusEditRequested MessageStatus = "EDIT_REQUESTED"
)

// Message is one user submission. Status transitions are monotonic; a
// rejected or edit-requested message is never reopened, the sender submits
// a new one instead.
type Message struct {
	ID             int64         `json:"id"`
	Type           MessageType   `json:"type"`
	ContentKind    ContentKind   `json:"content_kind"`
	Body           string        `json:"body"`    // text or caption, may be empty
	FileID         string        `json:"file_id"` // platform attachment handle, may be empty
	IsAnonymous    bool          `json:"is_anonymous"`
	SenderID       int64         `json:"sender_id"`
	ReceiverID     int64         `json:"receiver_id"` // personal messages only, 0 otherwise
	ParentID       int64         `json:"parent_id"`   // reply target, 0 for roots
	Status         MessageStatus `json:"status"`
	RejectReason   string        `json:"reject_reason"`
	PublishedMsgID int64         `json:"published_msg_id"` // group-chat copy, 0 until published
	CreatedAt      time.Time     `json:"created_at"`
}
