package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/pkg/game"
)

// Greeting is the only turn in a new or freshly cleared conversation.
const Greeting = "Hi, I'm SpeechBuddy. Ask me anything about speech and language therapy."

// ErrEmptyNote is returned for a blank community note. The list is unchanged.
var ErrEmptyNote = errors.New("please write something before posting")

// Session is the per-visitor context passed to handlers. The display
// history and the chain memory are kept apart: the first is what the page
// shows, the second is what the retrieval chain is conditioned on.
type Session struct {
	ID string

	mu       sync.Mutex
	messages []models.Turn
	memory   *memory.ChatMessageHistory
	window   int
	notes    []string
	round    *game.Round
	touched  time.Time
}

func newSession(id string, window int, rng *rand.Rand, now time.Time) *Session {
	return &Session{
		ID:       id,
		messages: []models.Turn{models.NewTurn(models.RoleSystem, Greeting)},
		memory:   memory.NewChatMessageHistory(),
		window:   window,
		round:    game.NewRound(rng),
		touched:  now,
	}
}

// Messages returns a copy of the display history.
func (s *Session) Messages() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Turn, len(s.messages))
	copy(out, s.messages)
	return out
}

// Append adds a turn to the display history.
func (s *Session) Append(turn models.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, turn)
}

// Remember records a question and its answer in the chain memory, keeping
// only the last window messages rounded down to whole exchanges.
func (s *Session) Remember(ctx context.Context, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.memory.AddUserMessage(ctx, question); err != nil {
		return fmt.Errorf("failed to store question: %w", err)
	}
	if err := s.memory.AddAIMessage(ctx, answer); err != nil {
		return fmt.Errorf("failed to store answer: %w", err)
	}
	if s.window <= 0 {
		return nil
	}

	msgs, err := s.memory.Messages(ctx)
	if err != nil {
		return err
	}
	// whole question and answer pairs only, so memory never opens on an answer
	keep := max(s.window-s.window%2, 2)
	if len(msgs) > keep {
		return s.memory.SetMessages(ctx, msgs[len(msgs)-keep:])
	}
	return nil
}

// History returns the chain memory as turns, oldest first.
func (s *Session) History(ctx context.Context) ([]models.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.memory.Messages(ctx)
	if err != nil {
		return nil, err
	}
	turns := make([]models.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := models.RoleUser
		switch m.GetType() {
		case llms.ChatMessageTypeAI:
			role = models.RoleAssistant
		case llms.ChatMessageTypeSystem:
			role = models.RoleSystem
		}
		turns = append(turns, models.NewTurn(role, m.GetContent()))
	}
	return turns, nil
}

// Reset clears the conversation back to the greeting and empties the chain
// memory. Notes and the game round are kept.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = []models.Turn{models.NewTurn(models.RoleSystem, Greeting)}
	return s.memory.Clear(ctx)
}

func (s *Session) AddNote(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyNote
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, text)
	return nil
}

func (s *Session) Notes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notes...)
}

// Round returns a snapshot of the current game round.
func (s *Session) Round() game.Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.round
}

func (s *Session) Guess(text string) (game.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round.Guess(text)
}

// NewRound replaces the game round with a fresh one.
func (s *Session) NewRound(rng *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round = game.NewRound(rng)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.touched = now
	s.mu.Unlock()
}

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}
