// Package generate provides AI story drafting, speech narration and illustration.
//
// # Providers
//
// A Provider bundles a ContentGenerator, a SpeechSynthesizer and an
// ImageGenerator. Two implementations exist:
//
//   - NewStub: Deterministic sample stories and stub:// audio handles, no network
//   - NewOpenAI: Chat completions, text-to-speech and image generation via go-openai
//
// New picks one from Config. WithFallback answers from the stub when the
// primary provider fails, and Instrument counts every call by kind and result.
//
// # Narration
//
// Speech requests name one of the fixed Voices and a speed between MinSpeed and
// MaxSpeed. EstimateDuration predicts playback length from the word count and
// the voice's pace.
//
// # Text Helpers
//
// Summarize, SuggestTags and MoralLesson are local heuristics and never call a
// provider.
package generate
