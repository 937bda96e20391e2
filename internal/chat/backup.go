package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ImportedSuffix is appended to the title of every imported session.
const ImportedSuffix = " (imported)"

// ErrEmptyBackup is returned by [Store.Import] when the document carries
// neither sessions nor a profile.
var ErrEmptyBackup = errors.New("chat: backup contains no sessions or profile")

// ImportResult summarises an import.
type ImportResult struct {
	// Sessions is the number of sessions added.
	Sessions int
	// FirstID is the id of the first imported session, if any.
	FirstID string
	// Profile reports whether a profile was merged.
	Profile bool
}

// Export writes a [Backup] of every session and the profile to w as indented
// JSON.
func (s *Store) Export(w io.Writer) error {
	s.mu.RLock()
	p := s.profile.clone()
	b := Backup{
		Version:     BackupVersion,
		Date:        time.Now().UTC(),
		UserProfile: &p,
		Sessions:    make([]Session, len(s.sessions)),
	}
	for i, sess := range s.sessions {
		b.Sessions[i] = sess.clone()
	}
	s.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("chat: export: %w", err)
	}
	return nil
}

// Import reads either a [Backup] object or a bare array of sessions from r.
// Imported sessions get fresh ids and the [ImportedSuffix] title suffix and
// are placed before the existing ones. A profile, when present, is merged
// into the current one with [MergeProfile].
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("chat: import: %w", err)
	}
	sessions, profile, err := decodeBackup(data)
	if err != nil {
		return ImportResult{}, err
	}
	if len(sessions) == 0 && profile == nil {
		return ImportResult{}, ErrEmptyBackup
	}

	for i := range sessions {
		sessions[i].ID = uuid.NewString()
		sessions[i].Title += ImportedSuffix
		if sessions[i].Messages == nil {
			sessions[i].Messages = []Message{}
		}
		if !sessions[i].Mode.Valid() {
			sessions[i].Mode = ModeNormal
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := ImportResult{Sessions: len(sessions), Profile: profile != nil}
	if len(sessions) > 0 {
		res.FirstID = sessions[0].ID
		s.sessions = append(sessions, s.sessions...)
	}
	if profile != nil {
		s.profile = MergeProfile(s.profile, *profile)
	}
	if err := s.saveLocked(ctx, len(sessions) > 0, profile != nil); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func decodeBackup(data []byte) ([]Session, *Profile, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil, ErrEmptyBackup
	}

	if trimmed[0] == '[' {
		var sessions []Session
		if err := json.Unmarshal(trimmed, &sessions); err != nil {
			return nil, nil, fmt.Errorf("chat: import: %w", err)
		}
		return sessions, nil, nil
	}

	var doc struct {
		Sessions    []Session       `json:"sessions"`
		UserProfile json.RawMessage `json:"userProfile"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, nil, fmt.Errorf("chat: import: %w", err)
	}
	if len(doc.UserProfile) == 0 || string(doc.UserProfile) == "null" {
		return doc.Sessions, nil, nil
	}
	p := DefaultProfile()
	if err := json.Unmarshal(doc.UserProfile, &p); err != nil {
		return nil, nil, fmt.Errorf("chat: import profile: %w", err)
	}
	normalizeProfile(&p)
	return doc.Sessions, &p, nil
}

// MergeProfile combines the current profile with an imported one. Progress
// counters keep the larger value, achievements and used tools are unioned,
// and non-empty text fields of in replace those of cur.
func MergeProfile(cur, in Profile) Profile {
	out := cur.clone()

	text := []struct {
		dst *string
		src string
	}{
		{&out.Name, in.Name},
		{&out.City, in.City},
		{&out.Province, in.Province},
		{&out.Skills, in.Skills},
		{&out.Description, in.Description},
		{&out.InitialGoal, in.InitialGoal},
		{&out.DISCType, in.DISCType},
		{&out.MBTIType, in.MBTIType},
		{&out.BusinessName, in.BusinessName},
		{&out.BusinessType, in.BusinessType},
		{&out.BusinessStage, in.BusinessStage},
		{&out.InitialCapital, in.InitialCapital},
		{&out.CurrentCapital, in.CurrentCapital},
		{&out.Goals, in.Goals},
	}
	for _, f := range text {
		if f.src != "" {
			*f.dst = f.src
		}
	}

	out.UserLevel = max(cur.UserLevel, in.UserLevel)
	out.TotalXP = max(cur.TotalXP, in.TotalXP)
	out.CurrentStreak = max(cur.CurrentStreak, in.CurrentStreak)
	out.BusinessLevel = max(cur.BusinessLevel, in.BusinessLevel)
	out.BusinessXP = max(cur.BusinessXP, in.BusinessXP)
	out.ManagerLevel = max(cur.ManagerLevel, in.ManagerLevel)
	out.ManagerXP = max(cur.ManagerXP, in.ManagerXP)

	// ISO-8601 timestamps order lexically.
	if in.LastActiveDate != nil && (out.LastActiveDate == nil || *in.LastActiveDate > *out.LastActiveDate) {
		d := *in.LastActiveDate
		out.LastActiveDate = &d
	}

	for _, ua := range in.UnlockedAchievements {
		if !slices.ContainsFunc(out.UnlockedAchievements, func(o UnlockedAchievement) bool { return o.ID == ua.ID }) {
			out.UnlockedAchievements = append(out.UnlockedAchievements, ua)
		}
	}

	out.Stats.TotalMessages = max(cur.Stats.TotalMessages, in.Stats.TotalMessages)
	out.Stats.TotalSessions = max(cur.Stats.TotalSessions, in.Stats.TotalSessions)
	for _, tool := range in.Stats.ToolsUsed {
		if !slices.Contains(out.Stats.ToolsUsed, tool) {
			out.Stats.ToolsUsed = append(out.Stats.ToolsUsed, tool)
		}
	}
	normalizeProfile(&out)
	return out
}
