// Package models contains the shared data types for TaskMind.
package models

// ArtifactKind identifies the type of data a capability consumes or produces.
type ArtifactKind string

const (
	// KindVideoFile is a downloaded or converted video file.
	KindVideoFile ArtifactKind = "video_file"
	// KindAudioFile is an audio file, extracted or recorded.
	KindAudioFile ArtifactKind = "audio_file"
	// KindTranscript is a text transcript produced from audio or video.
	KindTranscript ArtifactKind = "transcript"
	// KindScrapedDocument is structured content extracted from a web page.
	KindScrapedDocument ArtifactKind = "scraped_document"
	// KindDocument is a local document file (PDF, text, markdown).
	KindDocument ArtifactKind = "document"
	// KindDriveFile is a reference to a file stored in a cloud drive.
	KindDriveFile ArtifactKind = "drive_file"
)

// Valid returns true if the kind is a known value.
func (k ArtifactKind) Valid() bool {
	switch k {
	case KindVideoFile, KindAudioFile, KindTranscript, KindScrapedDocument, KindDocument, KindDriveFile:
		return true
	default:
		return false
	}
}

// Artifact is a typed result produced by one capability, possibly consumed
// as input by the next step in a pipeline.
type Artifact struct {
	// Kind is the artifact type.
	Kind ArtifactKind `json:"kind"`
	// Location is where the artifact lives: a local path, URL, or drive file ID.
	Location string `json:"location"`
	// Size is the artifact size in bytes, if known.
	Size int64 `json:"size,omitempty"`
	// Description is a short human-readable summary of the content.
	Description string `json:"description,omitempty"`
}
