package subtitle

// Segment is one translated caption span. Immutable once produced.
type Segment struct {
	StartTime        float64 `json:"startTime"`
	EndTime          float64 `json:"endTime"`
	Text             string  `json:"text"`
	OriginalLanguage string  `json:"originalLanguage"`
	TranslatedText   string  `json:"translatedText"`
}

type Status struct {
	VideoId          string    `json:"videoId"`
	Available        bool      `json:"available"`
	Processing       bool      `json:"processing"`
	OriginalLanguage string    `json:"originalLanguage,omitempty"`
	Segments         []Segment `json:"segments"`
}

// TranscribedSegment is a raw speech-to-text span before translation.
type TranscribedSegment struct {
	Start float64
	End   float64
	Text  string
}
