// Package game implements the word-guess exercise: the player is shown a hint
// and types the speech-therapy term it describes.
package game

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
)

// ErrEmptyGuess is returned for a blank guess. The round is left unchanged.
var ErrEmptyGuess = errors.New("please enter a guess")

type Outcome int

const (
	Unanswered Outcome = iota
	Correct
	Incorrect
)

func (o Outcome) String() string {
	switch o {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	default:
		return "unanswered"
	}
}

var hints = map[string]string{
	"articulation": "The physical production of speech sounds with the lips, tongue and teeth.",
	"fluency":      "The smooth, effortless flow of speech without repetitions or blocks.",
	"phoneme":      "The smallest unit of sound that changes the meaning of a word.",
	"resonance":    "How the voice vibrates in the throat, mouth and nose.",
	"stuttering":   "A disorder where sounds or syllables are repeated or prolonged.",
	"lisp":         "A speech pattern where s and z sounds are produced like th.",
}

// Words returns the playable words in sorted order.
func Words() []string {
	words := make([]string, 0, len(hints))
	for w := range hints {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// Hint returns the hint for word, and whether the word exists.
func Hint(word string) (string, bool) {
	h, ok := hints[strings.ToLower(word)]
	return h, ok
}

type Round struct {
	Word      string
	Hint      string
	Outcome   Outcome
	LastGuess string
}

// NewRound picks a word using r. A nil r uses the global source.
func NewRound(r *rand.Rand) *Round {
	words := Words()
	var i int
	if r == nil {
		i = rand.Intn(len(words))
	} else {
		i = r.Intn(len(words))
	}
	return NewRoundFor(words[i])
}

// NewRoundFor starts a round for a known word.
func NewRoundFor(word string) *Round {
	word = strings.ToLower(word)
	return &Round{Word: word, Hint: hints[word]}
}

// Guess scores a guess. Matching ignores case and surrounding whitespace.
func (r *Round) Guess(guess string) (Outcome, error) {
	guess = strings.TrimSpace(guess)
	if guess == "" {
		return r.Outcome, ErrEmptyGuess
	}

	r.LastGuess = guess
	if strings.EqualFold(guess, r.Word) {
		r.Outcome = Correct
	} else {
		r.Outcome = Incorrect
	}
	return r.Outcome, nil
}
