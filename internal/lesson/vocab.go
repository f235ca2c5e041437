package lesson

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Word pools for dynamic_vocab modules. Values are the hint shown to the
// learner.
var (
	synonymPool = map[string]string{
		"happy": "joyful, cheerful",
		"fast":  "quick, speedy",
		"smart": "intelligent, clever",
		"cold":  "chilly, freezing",
	}
	antonymPool = map[string]string{
		"strong": "weak, feeble",
		"easy":   "hard, difficult",
		"hot":    "cold, chilly",
		"tall":   "short, tiny",
	}
)

// drawVocab picks one word for wordType ("synonym" or "antonym") and builds
// its prompt.
func drawVocab(rng *rand.Rand, wordType string) (word, hint, prompt string) {
	pool := synonymPool
	if wordType == "antonym" {
		pool = antonymPool
	}
	words := make([]string, 0, len(pool))
	for w := range pool {
		words = append(words, w)
	}
	sort.Strings(words)
	word = words[rng.IntN(len(words))]
	return word, pool[word], fmt.Sprintf("Give a %s for '%s'.", wordType, word)
}
