package events

// Event names published by the engine.
const (
	EventLibraryContentChanged = "library:content-changed"
	EventArtistMetadataUpdated = "library:artist-metadata-updated"
)

// ChangeType describes what kind of library mutation occurred.
type ChangeType string

const (
	FolderAdded      ChangeType = "FolderAdded"
	FolderRemoved    ChangeType = "FolderRemoved"
	FolderRescanned  ChangeType = "FolderRescanned"
	LibraryRescanned ChangeType = "LibraryRescanned"
)

// LibraryContentChanged is emitted once per logical sync operation that
// actually changed persisted state. FolderID is nil for library-wide sweeps.
type LibraryContentChanged struct {
	ChangeType ChangeType `json:"change_type"`
	FolderID   *int64     `json:"folder_id,omitempty"`
}

// ArtistMetadataUpdated is emitted when an artist's cached image path changes.
type ArtistMetadataUpdated struct {
	ArtistID               int64  `json:"artist_id"`
	NewLocalImageCachePath string `json:"new_local_image_cache_path"`
}

// Emitter delivers events to whoever is listening (UI layer, tests).
// A nil Emitter is valid and drops everything.
type Emitter func(eventName string, payload any)

// Emit is a nil-safe dispatch helper.
func (e Emitter) Emit(eventName string, payload any) {
	if e != nil {
		e(eventName, payload)
	}
}
