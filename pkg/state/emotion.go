package state

import "strings"

// EmotionClassifier labels a finalized user utterance. The heuristic below is
// deliberately replaceable; the engine only depends on this interface.
type EmotionClassifier interface {
	Classify(text string) string
}

// KeywordClassifier is the default classifier: a small keyword heuristic tuned
// for Portuguese-speaking users.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "não aguento") || strings.Count(text, "!") >= 3:
		return "stressed"
	case strings.Contains(lower, "triste") || strings.Contains(lower, "depress"):
		return "sad"
	case strings.Contains(lower, "obrigado") || strings.Contains(lower, "maravilhoso"):
		return "happy"
	case strings.Contains(lower, "relax") || strings.Contains(lower, "calmo"):
		return "calm"
	}
	return "neutral"
}
