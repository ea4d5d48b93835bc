package usecases

import (
	"anonbot/internal/dialogue"
	"anonbot/internal/entities"
)

// ExtractedContent is the classified form of an inbound payload.
type ExtractedContent struct {
	Kind   entities.ContentKind
	Body   string
	FileID string
}

const unsupportedContentBody = "Неподдерживаемый тип сообщения"

// ExtractContent classifies a payload into a content kind, body text and
// attachment handle. An unrecognized shape degrades to plain text with a
// placeholder body.
func ExtractContent(p *dialogue.Payload) ExtractedContent {
	switch {
	case p.Text != "":
		return ExtractedContent{Kind: entities.ContentText, Body: p.Text}
	case p.PhotoFileID != "":
		return ExtractedContent{Kind: entities.ContentPhoto, Body: p.Caption, FileID: p.PhotoFileID}
	case p.VideoFileID != "":
		return ExtractedContent{Kind: entities.ContentVideo, Body: p.Caption, FileID: p.VideoFileID}
	case p.DocumentFileID != "":
		return ExtractedContent{Kind: entities.ContentDocument, Body: p.Caption, FileID: p.DocumentFileID}
	case p.StickerFileID != "":
		return ExtractedContent{Kind: entities.ContentSticker, FileID: p.StickerFileID}
	case p.VoiceFileID != "":
		return ExtractedContent{Kind: entities.ContentVoice, FileID: p.VoiceFileID}
	case p.VideoNoteFileID != "":
		return ExtractedContent{Kind: entities.ContentVideoNote, FileID: p.VideoNoteFileID}
	case p.AnimationFileID != "":
		return ExtractedContent{Kind: entities.ContentAnimation, Body: p.Caption, FileID: p.AnimationFileID}
	default:
		return ExtractedContent{Kind: entities.ContentText, Body: unsupportedContentBody}
	}
}

// ValidateComposable rejects content kinds that are banned in compose
// flows before classification. Returns ok=false with a user-facing reason.
func ValidateComposable(p *dialogue.Payload) (ok bool, reason string) {
	if p.StickerFileID != "" {
		return false, "❌ Отправка стикеров запрещена. Пожалуйста, отправьте текст, фото, видео, документ или голосовое сообщение."
	}
	if p.AnimationFileID != "" {
		return false, "❌ Отправка GIF запрещена. Пожалуйста, отправьте текст, фото, видео, документ или голосовое сообщение."
	}
	return true, ""
}
