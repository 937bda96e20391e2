// Package chat holds the coaching conversations and the user profile.
//
// [Store] keeps every session and the profile in memory and writes them to a
// [store.Backend] after each mutation under the keys "chatSessions" and
// "userProfile". Sessions are kept newest first.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/store"
)

// Backend keys.
const (
	KeySessions = "chatSessions"
	KeyProfile  = "userProfile"
)

// DefaultTitle is the title of a session that has no messages yet.
const DefaultTitle = "New chat"

// titleRunes is the number of runes of the first user message kept as the
// session title.
const titleRunes = 30

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("chat: session not found")

// Store is the in-memory view of all sessions and the profile, backed by a
// [store.Backend]. All methods are safe for concurrent use.
type Store struct {
	backend store.Backend

	mu       sync.RWMutex
	sessions []Session
	profile  Profile
}

// Open loads sessions and profile from backend. Missing keys start empty; a
// profile is always merged over [DefaultProfile] so fields added later have
// sensible values.
func Open(ctx context.Context, backend store.Backend) (*Store, error) {
	s := &Store{backend: backend, profile: DefaultProfile()}

	data, err := backend.Get(ctx, KeySessions)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("chat: load sessions: %w", err)
	default:
		if err := json.Unmarshal(data, &s.sessions); err != nil {
			return nil, fmt.Errorf("chat: decode sessions: %w", err)
		}
	}

	data, err = backend.Get(ctx, KeyProfile)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("chat: load profile: %w", err)
	default:
		if err := json.Unmarshal(data, &s.profile); err != nil {
			return nil, fmt.Errorf("chat: decode profile: %w", err)
		}
		normalizeProfile(&s.profile)
	}

	slog.Debug("chat: store opened", "sessions", len(s.sessions))
	return s, nil
}

func normalizeProfile(p *Profile) {
	if p.UnlockedAchievements == nil {
		p.UnlockedAchievements = []UnlockedAchievement{}
	}
	if p.Stats.ToolsUsed == nil {
		p.Stats.ToolsUsed = []string{}
	}
}

// ── Sessions ─────────────────────────────────────────────────────────────────

// NewSession creates an empty session in the given mode, places it first and
// increments the profile's session counter.
func (s *Store) NewSession(ctx context.Context, mode Mode) (Session, error) {
	if !mode.Valid() {
		mode = ModeNormal
	}
	sess := Session{
		ID:       uuid.NewString(),
		Title:    DefaultTitle,
		Messages: []Message{},
		Mode:     mode,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = slices.Insert(s.sessions, 0, sess)
	s.profile.Stats.TotalSessions++
	if err := s.saveLocked(ctx, true, true); err != nil {
		return Session{}, err
	}
	return sess.clone(), nil
}

// Session returns a copy of the session with the given id.
func (s *Store) Session(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.sessions[i].clone(), nil
}

// Sessions returns copies of all sessions, newest first.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.clone()
	}
	return out
}

// Append adds msg to the session. The first user message of an empty session
// also becomes its title.
func (s *Store) Append(ctx context.Context, id string, msg Message) error {
	return s.mutate(ctx, id, func(sess *Session) {
		if len(sess.Messages) == 0 && msg.Role == RoleUser && msg.Content != "" {
			sess.Title = titleFrom(msg.Content)
		}
		sess.Messages = append(sess.Messages, msg)
	})
}

// ReplaceLast overwrites the session's last message, or appends msg when the
// session is empty.
func (s *Store) ReplaceLast(ctx context.Context, id string, msg Message) error {
	return s.mutate(ctx, id, func(sess *Session) {
		if n := len(sess.Messages); n > 0 {
			sess.Messages[n-1] = msg
			return
		}
		sess.Messages = append(sess.Messages, msg)
	})
}

// UpdateLast is ReplaceLast without the write: it changes the in-memory
// session only, and the next persisted mutation stores the result. It is
// meant for content that changes many times a second, such as a streamed
// reply.
func (s *Store) UpdateLast(id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess := &s.sessions[i]
	if n := len(sess.Messages); n > 0 {
		sess.Messages[n-1] = msg
	} else {
		sess.Messages = append(sess.Messages, msg)
	}
	return nil
}

// SetMode changes the session's mode.
func (s *Store) SetMode(ctx context.Context, id string, mode Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("chat: unknown mode %q", mode)
	}
	return s.mutate(ctx, id, func(sess *Session) { sess.Mode = mode })
}

// Rename sets the session title.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	return s.mutate(ctx, id, func(sess *Session) { sess.Title = title })
}

// Delete removes the session. When the last session is removed the stored
// list key is deleted as well.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.sessions = slices.Delete(s.sessions, i, i+1)
	if len(s.sessions) == 0 {
		if err := s.backend.Delete(ctx, KeySessions); err != nil {
			return fmt.Errorf("chat: save sessions: %w", err)
		}
		return nil
	}
	return s.saveLocked(ctx, true, false)
}

func (s *Store) mutate(ctx context.Context, id string, fn func(*Session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	fn(&s.sessions[i])
	return s.saveLocked(ctx, true, false)
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.sessions, func(sess Session) bool { return sess.ID == id })
}

// ── Profile ──────────────────────────────────────────────────────────────────

// Profile returns a copy of the user profile.
func (s *Store) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.clone()
}

// UpdateProfile applies fn to the profile and persists the result.
func (s *Store) UpdateProfile(ctx context.Context, fn func(*Profile)) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.profile.clone()
	fn(&p)
	normalizeProfile(&p)
	s.profile = p
	if err := s.saveLocked(ctx, false, true); err != nil {
		return Profile{}, err
	}
	return p.clone(), nil
}

// RecordMessage counts a sent user message and notes the mode it used.
func (s *Store) RecordMessage(ctx context.Context, mode Mode) error {
	_, err := s.UpdateProfile(ctx, func(p *Profile) {
		p.Stats.TotalMessages++
		if !slices.Contains(p.Stats.ToolsUsed, string(mode)) {
			p.Stats.ToolsUsed = append(p.Stats.ToolsUsed, string(mode))
		}
	})
	return err
}

// ── Persistence ──────────────────────────────────────────────────────────────

func (s *Store) saveLocked(ctx context.Context, sessions, profile bool) error {
	if sessions {
		data, err := json.Marshal(s.sessions)
		if err != nil {
			return fmt.Errorf("chat: encode sessions: %w", err)
		}
		if err := s.backend.Put(ctx, KeySessions, data); err != nil {
			return fmt.Errorf("chat: save sessions: %w", err)
		}
	}
	if profile {
		data, err := json.Marshal(s.profile)
		if err != nil {
			return fmt.Errorf("chat: encode profile: %w", err)
		}
		if err := s.backend.Put(ctx, KeyProfile, data); err != nil {
			return fmt.Errorf("chat: save profile: %w", err)
		}
	}
	return nil
}

// titleFrom returns the first 30 runes of text, with "..." appended when
// text was longer.
func titleFrom(text string) string {
	if utf8.RuneCountInString(text) <= titleRunes {
		return text
	}
	r := []rune(text)
	return string(r[:titleRunes]) + "..."
}
