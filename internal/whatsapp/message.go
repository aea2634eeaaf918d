package whatsapp

// --- Message Structures ---

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeVideo MessageType = "video"
	TypeAudio MessageType = "audio"
)

// OutgoingMessage is one message addressed to a single recipient. Exactly one
// of Text, Image, Video or Audio is set, matching Type.
type OutgoingMessage struct {
	Type  MessageType `json:"type"`
	Text  *TextObj    `json:"text,omitempty"`
	Image *MediaObj   `json:"image,omitempty"`
	Video *MediaObj   `json:"video,omitempty"`
	Audio *MediaObj   `json:"audio,omitempty"`
}

type TextObj struct {
	Body string `json:"body"`
}

type MediaObj struct {
	Filename    string `json:"filename,omitempty"`
	Mimetype    string `json:"mimetype,omitempty"`
	Caption     string `json:"caption,omitempty"`
	GIFPlayback bool   `json:"gif_playback,omitempty"`
	Data        []byte `json:"-"`
	Thumbnail   []byte `json:"-"`
}

func NewTextMessage(body string) *OutgoingMessage {
	return &OutgoingMessage{Type: TypeText, Text: &TextObj{Body: body}}
}

// Media returns the media body of the message, or nil for text.
func (m *OutgoingMessage) Media() *MediaObj {
	switch m.Type {
	case TypeImage:
		return m.Image
	case TypeVideo:
		return m.Video
	case TypeAudio:
		return m.Audio
	}
	return nil
}

// Caption returns the caption carried by a media message.
func (m *OutgoingMessage) Caption() string {
	if media := m.Media(); media != nil {
		return media.Caption
	}
	return ""
}
