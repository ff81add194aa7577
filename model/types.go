package model

// UnknownSpeaker labels words that fall inside no speaker turn.
const UnknownSpeaker = "UNKNOWN"

// Word is a single transcribed word with its timing in seconds.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SpeakerTurn is an interval of the recording attributed to one speaker.
type SpeakerTurn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// LabeledWord is a Word with the speaker assigned by the merge step.
type LabeledWord struct {
	Word
	Speaker string `json:"speaker"`
}

// Block is a run of consecutive words spoken by the same speaker.
type Block struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Transcription is the output of a speech-to-text model.
type Transcription struct {
	Text  string `json:"text"`
	Words []Word `json:"words"`
}
