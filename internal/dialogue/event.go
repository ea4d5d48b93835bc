package dialogue

// Payload carries the content shape of one inbound platform message. At
// most one of the file id fields is set.
type Payload struct {
	Text            string `json:"text,omitempty"`
	Caption         string `json:"caption,omitempty"`
	PhotoFileID     string `json:"photo_file_id,omitempty"`
	VideoFileID     string `json:"video_file_id,omitempty"`
	DocumentFileID  string `json:"document_file_id,omitempty"`
	StickerFileID   string `json:"sticker_file_id,omitempty"`
	VoiceFileID     string `json:"voice_file_id,omitempty"`
	VideoNoteFileID string `json:"video_note_file_id,omitempty"`
	AnimationFileID string `json:"animation_file_id,omitempty"`
}

// EventKind discriminates inbound events a dialogue can wait for.
type EventKind string

const (
	EventMessage  EventKind = "message"
	EventCallback EventKind = "callback"
)

// Event is one inbound occurrence for a chat: either a message payload or
// an inline-button click.
type Event struct {
	Kind     EventKind `json:"kind"`
	Callback string    `json:"callback,omitempty"`
	Payload  *Payload  `json:"payload,omitempty"`
}

// MessageEvent wraps a payload as an event.
func MessageEvent(p Payload) Event {
	return Event{Kind: EventMessage, Payload: &p}
}

// CallbackEvent wraps button-click data as an event.
func CallbackEvent(data string) Event {
	return Event{Kind: EventCallback, Callback: data}
}
