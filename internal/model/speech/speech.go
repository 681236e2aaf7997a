package speech

import "time"

// TTSRequest asks for one answer to be read aloud.
type TTSRequest struct {
	AnswerID string  `json:"answerId,omitempty"`
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float32 `json:"speed,omitempty"`  // 0.5-2.0
	Volume   float32 `json:"volume,omitempty"` // 0.0-2.0
	Format   string  `json:"format,omitempty"` // mp3 or pcm
	Language string  `json:"language,omitempty"`
}

// TTSResponse carries the synthesized audio.
type TTSResponse struct {
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration"` // milliseconds
	Format    string    `json:"format"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
