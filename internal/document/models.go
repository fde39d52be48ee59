// internal/document/models.go
package document

// Model is the typed form of a document. Documents are stored as JSON-shaped
// trees so they can be addressed by path; Model is how callers build and read
// them without spelling out maps.
type Model struct {
	Scenes     []Scene              `json:"scenes"`
	Characters map[string]Character `json:"characters"`
}

// Scene is one ordered element of the storyboard
type Scene struct {
	ID         string         `json:"id"`
	Title      string         `json:"title,omitempty"`
	Background string         `json:"background,omitempty"`
	Camera     *Camera        `json:"camera,omitempty"`
	Dialogues  []DialogueLine `json:"dialogues,omitempty"`
	Duration   float64        `json:"duration"`
}

// Camera is the framing of a scene
type Camera struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DialogueLine is a timed line spoken in a scene
type DialogueLine struct {
	CharacterID string  `json:"character_id"`
	Text        string  `json:"text"`
	Start       float64 `json:"start"`
	End         float64 `json:"end,omitempty"`
}

// Character is an entry of the character roster
type Character struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	Traits      []string `json:"traits,omitempty"`
}
