package services

import (
	"strings"
	"unicode"
)

// AudioAnalyzer derives speech metrics from transcripts, word
// timestamps and amplitude samples. All methods are pure; zero or
// missing input produces neutral defaults rather than errors.
type AudioAnalyzer struct {
	singleFillers map[string]bool
	phraseFillers []string
}

func NewAudioAnalyzer() *AudioAnalyzer {
	singles := []string{
		"um", "uh", "like", "basically", "literally", "actually",
		"so", "right", "okay", "hmm", "er", "ah", "kinda", "sorta",
		"well", "yeah",
	}
	set := make(map[string]bool, len(singles))
	for _, w := range singles {
		set[w] = true
	}
	return &AudioAnalyzer{
		singleFillers: set,
		phraseFillers: []string{"you know", "i mean"},
	}
}

// tokenize lowercases the text and splits it into words, stripping
// surrounding punctuation so "Um," matches "um".
func (a *AudioAnalyzer) tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// CountWords returns the number of words in a transcript.
func (a *AudioAnalyzer) CountWords(text string) int {
	return len(a.tokenize(text))
}

// CountFillerWords counts filler occurrences in a transcript. Two-word
// fillers are matched first so "you know" does not double count as a
// stray "you" plus "know".
func (a *AudioAnalyzer) CountFillerWords(text string) int {
	words := a.tokenize(text)
	count := 0
	for i := 0; i < len(words); i++ {
		if i+1 < len(words) {
			bigram := words[i] + " " + words[i+1]
			matched := false
			for _, p := range a.phraseFillers {
				if bigram == p {
					count++
					i++
					matched = true
					break
				}
			}
			if matched {
				continue
			}
		}
		if a.singleFillers[words[i]] {
			count++
		}
	}
	return count
}

// SpeechRateWPM computes words per minute over the speaking duration.
// Zero duration yields zero rather than a division blowup.
func (a *AudioAnalyzer) SpeechRateWPM(wordCount int, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return float64(wordCount) / durationSeconds * 60.0
}

// AnalyzePauses computes average and longest pause from word-onset
// timestamps. A pause is any inter-word gap longer than one second.
// Fewer than two samples means no gaps to measure.
func (a *AudioAnalyzer) AnalyzePauses(timestamps []float64) (avg, longest float64) {
	if len(timestamps) < 2 {
		return 0, 0
	}
	var sum float64
	var n int
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i] - timestamps[i-1]
		if gap > 1.0 {
			sum += gap
			n++
			if gap > longest {
				longest = gap
			}
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), longest
}

// AnalyzeAmplitude derives voice confidence and stability from raw
// amplitude samples in [0,1]. Confidence scales the mean amplitude
// into [30,100]; stability penalizes variance. Empty input is neutral.
func (a *AudioAnalyzer) AnalyzeAmplitude(samples []float64) (confidence, stability float64) {
	if len(samples) == 0 {
		return 50, 50
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(samples))

	confidence = (mean-0.2)/0.6*70 + 30
	if confidence > 100 {
		confidence = 100
	}
	if confidence < 30 {
		confidence = 30
	}

	stability = 100 - variance*700
	if stability < 30 {
		stability = 30
	}
	return confidence, stability
}
