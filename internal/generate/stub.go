// ABOUTME: Deterministic in-process provider returning fixed sample stories and images
// ABOUTME: Used in tests and whenever no real generation backend is configured

package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var sampleStories = map[string]Generated{
	"Historical Fiction": {
		Title:       "The Wisdom of Emperor Akbar",
		Description: "A tale of justice and wisdom from the Mughal court, where Emperor Akbar's fair judgment resolves a complex dispute between merchants.",
		Content: `In the golden halls of Fatehpur Sikri, Emperor Akbar held court on a bright morning in the year 1590. Two merchants stood before the throne, their dispute echoing in the vast chamber.

"Your Majesty," began Hakim, a textile merchant from Delhi, "this man has cheated me of my rightful earnings. We agreed on a price for my finest silk, but now he refuses to pay the full amount."

Ramesh, a trader from Gujarat, held his head high. "Respected Emperor, the silk was not as promised. I paid what the goods were truly worth."

Akbar examined the silk closely, feeling its texture and studying its weave under the light. "Hakim, you will receive three-quarters of the agreed price, for your silk is good but not exceptional. Ramesh, you will pay this amount plus a small penalty for not speaking your concerns before taking the goods."

"Trust is the foundation of all trade," the emperor said with a gentle smile. "Honest communication prevents such disputes."

Birbal bowed. "Once again, Jahanpanah, your judgment serves justice while teaching valuable lessons."

The story of this judgment spread throughout the empire, reminding every merchant that fairness and trust were the pillars of commerce, and that in Akbar's court wisdom prevailed over conflict.`,
	},
	"Mythology Retelling": {
		Title:       "The Test of Hanuman's Devotion",
		Description: "A retelling of how Lord Hanuman's unwavering devotion to Rama was tested and proved beyond all doubt.",
		Content: `In the celestial realm a great debate arose about the nature of true devotion. "True devotion," declared Sage Narada, "transcends all forms and manifests as complete surrender of the self."

And so a test was devised. A brahmin appeared before Hanuman as he sat in meditation. "Do you love Rama more, or does Rama love you more?"

"How can one measure the ocean of Lord Rama's love?" Hanuman answered. "I desire nothing except the opportunity to serve."

"Then tear open your chest and show me where Rama resides in your heart."

Without hesitation Hanuman placed his hands on his chest. At that moment the brahmin revealed his true form. It was Lord Rama himself.

"Stop, my dear Hanuman," said Rama. "Your willingness proves your devotion beyond any doubt. Your love is pure and selfless."

The watching gods bowed, understanding that true devotion asks no questions, seeks no rewards, and finds its joy in loving service.`,
	},
}

var sampleImages = []string{
	"https://images.pexels.com/photos/1587927/pexels-photo-1587927.jpeg",
	"https://images.pexels.com/photos/2889344/pexels-photo-2889344.jpeg",
	"https://images.pexels.com/photos/1586298/pexels-photo-1586298.jpeg",
}

// StubSpeechScheme prefixes audio handles produced by Stub.
const StubSpeechScheme = "stub://speech/"

// Stub implements every provider interface with fixed responses.
type Stub struct{}

// Compile-time interface checks.
var (
	_ ContentGenerator  = Stub{}
	_ SpeechSynthesizer = Stub{}
	_ ImageGenerator    = StubImages{}
)

// Generate returns the sample story for p.Type, defaulting to historical fiction.
func (Stub) Generate(ctx context.Context, p Prompt) (*Generated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	story, ok := sampleStories[p.Type]
	if !ok {
		story = sampleStories[DefaultStoryType]
	}
	if c := strings.TrimSpace(p.Context); c != "" {
		story.Description = fmt.Sprintf("%s Set in the context of %s.", story.Description, c)
	}
	return &story, nil
}

// Synthesize validates the request and returns a handle derived from its inputs.
func (Stub) Synthesize(ctx context.Context, text, voice string, speed float64) (AudioHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := checkSpeech(text, voice, speed); err != nil {
		return "", err
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s|%.2f|%s", voice, speed, text)))
	return AudioHandle(StubSpeechScheme + id.String()), nil
}

// StubImages returns fixed illustration URLs.
type StubImages struct{}

// Generate returns at most count sample image URLs.
func (StubImages) Generate(ctx context.Context, prompt string, count int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return []string{}, nil
	}
	if count > len(sampleImages) {
		count = len(sampleImages)
	}
	out := make([]string, count)
	copy(out, sampleImages[:count])
	return out, nil
}

// NewStub returns a provider backed entirely by fixed responses.
func NewStub() *Provider {
	return &Provider{
		Name:   "stub",
		Text:   Stub{},
		Speech: Stub{},
		Images: StubImages{},
	}
}

// StoryTypes lists the story types with dedicated sample content.
func StoryTypes() []string {
	return []string{"Historical Fiction", "Mythology Retelling"}
}
