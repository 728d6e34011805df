// ABOUTME: Narration voice personalities with pacing used for validation and estimates
// ABOUTME: Speed checks shared by every SpeechSynthesizer

package generate

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultVoice is the narrator used when none is chosen.
const DefaultVoice = "Wise Elder"

// Voice describes a narration personality.
type Voice struct {
	Name    string
	WPM     float64
	Emotion string
	Sample  string
	// Pausing voices linger between phrases, stretching narration by a fifth.
	Pausing bool
}

var voices = []Voice{
	{Name: "Wise Elder", WPM: 160, Emotion: "calm", Pausing: true,
		Sample: "In ancient times, when wisdom flowed like rivers through the hearts of men, there lived a sage whose words could move mountains."},
	{Name: "Royal Narrator", WPM: 170, Emotion: "dignified",
		Sample: "Hear now the tale of kings and queens, of palaces grand and battles won, in the golden age of our glorious past."},
	{Name: "Dramatic Storyteller", WPM: 190, Emotion: "expressive", Pausing: true,
		Sample: "Lightning crashed across the midnight sky as our hero faced the greatest challenge of his life!"},
	{Name: "Gentle Grandmother", WPM: 150, Emotion: "warm",
		Sample: "Come close, my dear children, and let me tell you a story that my grandmother told to me long ago."},
	{Name: "Heroic Warrior", WPM: 180, Emotion: "bold",
		Sample: "With sword in hand and courage in heart, the brave warrior charged into battle for honor and justice!"},
	{Name: "Playful Youth", WPM: 200, Emotion: "cheerful",
		Sample: "Once upon a time, in a land filled with magic and wonder, the most amazing adventure was about to begin!"},
	{Name: "Mystical Sage", WPM: 140, Emotion: "mysterious", Pausing: true,
		Sample: "From the depths of ancient wisdom comes a tale shrouded in mystery and enlightenment."},
}

// Voices returns the known voice personalities in display order.
func Voices() []Voice {
	out := make([]Voice, len(voices))
	copy(out, voices)
	return out
}

// LookupVoice finds a voice by name.
func LookupVoice(name string) (Voice, bool) {
	for _, v := range voices {
		if v.Name == name {
			return v, true
		}
	}
	return Voice{}, false
}

// EstimateDuration approximates how long narrating text takes.
func EstimateDuration(text, voice string, speed float64) time.Duration {
	v, ok := LookupVoice(voice)
	if !ok {
		v = Voice{WPM: 170}
	}
	if !(speed > 0) || math.IsInf(speed, 1) {
		speed = 1
	}
	words := len(strings.Fields(text))
	minutes := float64(words) / (v.WPM * speed)
	if v.Pausing {
		minutes *= 1.2
	}
	return time.Duration(minutes * float64(time.Minute))
}

// checkSpeech validates a synthesis request.
func checkSpeech(text, voice string, speed float64) (Voice, error) {
	if strings.TrimSpace(text) == "" {
		return Voice{}, fmt.Errorf("%w: %w", ErrSynthesis, ErrEmptyInput)
	}
	if !(speed >= MinSpeed && speed <= MaxSpeed) {
		return Voice{}, fmt.Errorf("%w: speed %.2f outside [%.1f, %.1f]", ErrSynthesis, speed, MinSpeed, MaxSpeed)
	}
	v, ok := LookupVoice(voice)
	if !ok {
		return Voice{}, fmt.Errorf("%w: unknown voice %q", ErrSynthesis, voice)
	}
	return v, nil
}
