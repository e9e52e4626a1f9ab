package session

import "github.com/starford/raido/internal/models"

// MethodInitializeLuis is the request that delivers authoring keys.
const MethodInitializeLuis = "initializeLuis"

// TextDocumentIdentifier names a document on the wire.
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// AuthoringKeyEntry is one element of InitializeLuisParams.Data.
type AuthoringKeyEntry struct {
	TextDocument     TextDocumentIdentifier `json:"textDocument"`
	LUISAuthoringKey string                 `json:"LUISAuthoringKey"`
}

// InitializeLuisParams is the body of the initializeLuis request.
type InitializeLuisParams struct {
	Data []AuthoringKeyEntry `json:"data"`
}

// NewInitializeLuisParams maps a metadata snapshot to the wire payload.
// Data is never nil, so an empty snapshot encodes as "data": [].
func NewInitializeLuisParams(entries []models.MetadataEntry) InitializeLuisParams {
	data := make([]AuthoringKeyEntry, 0, len(entries))
	for _, e := range entries {
		data = append(data, AuthoringKeyEntry{
			TextDocument:     TextDocumentIdentifier{URI: e.URI},
			LUISAuthoringKey: e.Metadata,
		})
	}
	return InitializeLuisParams{Data: data}
}
