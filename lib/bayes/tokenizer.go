package bayes

import (
	"unicode"

	"github.com/rivo/uniseg"
)

// Tokenize splits text into words using unicode word boundaries (UAX #29).
// Segments without a letter or a digit (spaces, punctuation, emoji) are dropped. Case is preserved,
// contractions like "don't" and numbers like "3.14" stay single tokens.
func Tokenize(text string) []string {
	words := []string{}
	state := -1
	var word string
	for text != "" {
		word, text, state = uniseg.FirstWordInString(text, state)
		if isWord(word) {
			words = append(words, word)
		}
	}
	return words
}

func isWord(segment string) bool {
	for _, r := range segment {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}
