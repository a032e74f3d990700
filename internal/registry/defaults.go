package registry

import (
	"time"

	"github.com/taskmind/taskmind/pkg/models"
)

// DefaultProfiles returns the built-in capability set, used when no registry
// file is configured. Keyword weights favor the verbs users actually type;
// tool names score lower so an incidental mention doesn't win routing.
func DefaultProfiles() []CapabilityProfile {
	return []CapabilityProfile{
		{
			ID:          "video",
			DisplayName: "Video Downloader",
			Keywords: []Keyword{
				{Phrase: "download", Weight: 1.0},
				{Phrase: "youtube", Weight: 1.0},
				{Phrase: "video", Weight: 0.6},
				{Phrase: "yt-dlp", Weight: 0.8},
				{Phrase: "playlist", Weight: 0.6},
			},
			Produces:       models.KindVideoFile,
			CollaboratorID: "ytdlp",
			StepTimeout:    10 * time.Minute,
			ProgressWeight: 3,
		},
		{
			ID:          "transcribe",
			DisplayName: "Audio Transcriber",
			Keywords: []Keyword{
				{Phrase: "transcribe", Weight: 1.0},
				{Phrase: "transcription", Weight: 1.0},
				{Phrase: "speech to text", Weight: 1.0},
				{Phrase: "audio", Weight: 0.6},
				{Phrase: "whisper", Weight: 0.8},
				{Phrase: "voice", Weight: 0.6},
			},
			Accepts:        []models.ArtifactKind{models.KindVideoFile, models.KindAudioFile},
			Produces:       models.KindTranscript,
			CollaboratorID: "whisper",
			StepTimeout:    10 * time.Minute,
			ProgressWeight: 3,
		},
		{
			ID:          "convert",
			DisplayName: "Media Converter",
			Keywords: []Keyword{
				{Phrase: "convert", Weight: 1.0},
				{Phrase: "ffmpeg", Weight: 0.8},
				{Phrase: "extract audio", Weight: 1.0},
				{Phrase: "mp4", Weight: 0.6},
				{Phrase: "mp3", Weight: 0.6},
				{Phrase: "media", Weight: 0.4},
			},
			Accepts:        []models.ArtifactKind{models.KindVideoFile, models.KindAudioFile},
			Produces:       models.KindAudioFile,
			CollaboratorID: "ffmpeg",
			StepTimeout:    10 * time.Minute,
			ProgressWeight: 2,
		},
		{
			ID:          "scrape",
			DisplayName: "Web Scraper",
			Keywords: []Keyword{
				{Phrase: "scrape", Weight: 1.0},
				{Phrase: "crawl", Weight: 1.0},
				{Phrase: "extract", Weight: 0.6},
				{Phrase: "web page", Weight: 0.8},
				{Phrase: "html", Weight: 0.6},
				{Phrase: "website", Weight: 0.6},
			},
			Produces:       models.KindScrapedDocument,
			CollaboratorID: "firecrawl",
			StepTimeout:    time.Minute,
			ProgressWeight: 1,
		},
		{
			ID:          "storage",
			DisplayName: "Drive Storage",
			Keywords: []Keyword{
				{Phrase: "upload", Weight: 1.0},
				{Phrase: "backup", Weight: 1.0},
				{Phrase: "save to drive", Weight: 1.0},
				{Phrase: "google drive", Weight: 1.0},
				{Phrase: "cloud", Weight: 0.6},
				{Phrase: "sync", Weight: 0.6},
			},
			Accepts: []models.ArtifactKind{
				models.KindVideoFile,
				models.KindAudioFile,
				models.KindTranscript,
				models.KindScrapedDocument,
				models.KindDocument,
			},
			Produces:       models.KindDriveFile,
			CollaboratorID: "gdrive",
			StepTimeout:    10 * time.Minute,
			ProgressWeight: 2,
		},
		{
			ID:          "document",
			DisplayName: "Document Processor",
			Keywords: []Keyword{
				{Phrase: "pdf", Weight: 1.0},
				{Phrase: "document", Weight: 0.8},
				{Phrase: "extract text", Weight: 1.0},
				{Phrase: "summarize", Weight: 0.6},
			},
			Accepts:        []models.ArtifactKind{models.KindDocument, models.KindScrapedDocument, models.KindTranscript},
			Produces:       models.KindDocument,
			CollaboratorID: "pdf",
			StepTimeout:    time.Minute,
			ProgressWeight: 1,
		},
	}
}
