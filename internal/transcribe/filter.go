package transcribe

import (
	"regexp"
	"strings"
)

// silenceMarkers are exact (case-insensitive) transcriptions the model
// emits for silent or unintelligible audio.
var silenceMarkers = map[string]struct{}{
	"[blank_audio]": {},
	"[blank audio]": {},
	"(blank_audio)": {},
	"(blank audio)": {},
	"[silence]":     {},
	"(silence)":     {},
	"[inaudible]":   {},
	"(inaudible)":   {},
	"[no speech]":   {},
	"(no speech)":   {},
}

// nonSpeechPattern matches bracketed or parenthesized descriptive text
// naming an ambient sound category, e.g. "(dramatic music playing)" or
// "[door slams]". Whisper emits these for non-speech audio.
var nonSpeechPattern = regexp.MustCompile(`(?i)^[\[(][^\])]*` +
	`\b(music|noise|laugh(s|ter|ing)?|applause|clap(s|ping)?|cheer(s|ing)?|` +
	`footsteps|typing|keyboard|cough(s|ing)?|sneez(es|ing)|sigh(s|ing)?|` +
	`breath(es|ing)?|wind|rain|thunder|static|beep(s|ing)?|hum(s|ming)?|` +
	`buzz(es|ing)?|chatter|rustl(e|es|ing)|click(s|ing)?|thud(s)?|` +
	`knock(s|ing)?|door|bell|siren|engine|traffic|barking|birds)\b` +
	`[^\[(]*[\])]$`)

// IsNonSpeech reports whether a transcribed segment should be discarded:
// blank text, a known silence marker, or a bracketed non-speech
// annotation. Ordinary transcribed text always passes.
func IsNonSpeech(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if _, ok := silenceMarkers[strings.ToLower(trimmed)]; ok {
		return true
	}
	return nonSpeechPattern.MatchString(trimmed)
}
