package chat_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
)

func TestExport(t *testing.T) {
	t.Parallel()
	s, _ := openStore(t, nil)
	ctx := context.Background()
	sess, _ := s.NewSession(ctx, chat.ModeFinance)
	_ = s.Append(ctx, sess.ID, chat.Message{Role: chat.RoleUser, Content: "hello"})

	var buf bytes.Buffer
	if err := s.Export(&buf); err != nil {
		t.Fatal(err)
	}
	var b chat.Backup
	if err := json.Unmarshal(buf.Bytes(), &b); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if b.Version != "2.6" || b.Date.IsZero() {
		t.Errorf("header = %q %v", b.Version, b.Date)
	}
	if b.UserProfile == nil || len(b.Sessions) != 1 || b.Sessions[0].Mode != chat.ModeFinance {
		t.Errorf("backup = %+v", b)
	}
}

func TestImport_BareArray(t *testing.T) {
	t.Parallel()
	s, _ := openStore(t, nil)
	ctx := context.Background()
	existing, _ := s.NewSession(ctx, chat.ModeNormal)

	doc := `[
		{"id":"chat-1","title":"Cafe","messages":[{"role":"user","content":"hi"}],"chatMode":"مشاوره مالی"},
		{"id":"chat-2","title":"Shop","messages":[],"chatMode":"NORMAL"}
	]`
	res, err := s.Import(ctx, strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if res.Sessions != 2 || res.Profile {
		t.Errorf("result = %+v", res)
	}

	list := s.Sessions()
	if len(list) != 3 {
		t.Fatalf("sessions = %d; want 3", len(list))
	}
	if list[0].Title != "Cafe (imported)" || list[1].Title != "Shop (imported)" {
		t.Errorf("titles = %q, %q", list[0].Title, list[1].Title)
	}
	if list[0].ID == "chat-1" || list[0].ID != res.FirstID {
		t.Errorf("imported id = %q; want fresh id %q", list[0].ID, res.FirstID)
	}
	if list[0].Mode != chat.ModeFinance {
		t.Errorf("mode = %q", list[0].Mode)
	}
	if list[2].ID != existing.ID {
		t.Error("existing sessions should follow the imported ones")
	}
}

func TestImport_BackupObjectMergesProfile(t *testing.T) {
	t.Parallel()
	s, _ := openStore(t, nil)
	ctx := context.Background()
	_, _ = s.UpdateProfile(ctx, func(p *chat.Profile) {
		p.Name = "Sara"
		p.City = "Tabriz"
		p.UserLevel = 4
		p.TotalXP = 900
		p.CurrentStreak = 2
		p.UnlockedAchievements = []chat.UnlockedAchievement{{ID: "first_step", UnlockedAt: "2025-01-01T00:00:00Z"}}
		p.Stats.TotalMessages = 50
		p.Stats.ToolsUsed = []string{"finance"}
	})

	doc := `{
		"version": "2.6",
		"date": "2025-06-01T10:00:00Z",
		"userProfile": {
			"name": "Sara K.",
			"city": "",
			"userLevel": 2,
			"totalXP": 1200,
			"currentStreak": 7,
			"unlockedAchievements": [
				{"id":"first_step","unlockedAt":"2025-03-01T00:00:00Z"},
				{"id":"negotiator","unlockedAt":"2025-04-01T00:00:00Z"}
			],
			"stats": {"totalMessages": 10, "totalSessions": 9, "toolsUsed": ["finance","maps"]}
		},
		"sessions": [{"id":"x","title":"Old","messages":[],"chatMode":"finance"}]
	}`
	res, err := s.Import(ctx, strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Profile || res.Sessions != 1 {
		t.Errorf("result = %+v", res)
	}

	p := s.Profile()
	if p.Name != "Sara K." || p.City != "Tabriz" {
		t.Errorf("text fields = %q / %q", p.Name, p.City)
	}
	if p.UserLevel != 4 || p.TotalXP != 1200 || p.CurrentStreak != 7 {
		t.Errorf("progress = lvl %d xp %d streak %d", p.UserLevel, p.TotalXP, p.CurrentStreak)
	}
	if len(p.UnlockedAchievements) != 2 || p.UnlockedAchievements[0].UnlockedAt != "2025-01-01T00:00:00Z" {
		t.Errorf("achievements = %+v", p.UnlockedAchievements)
	}
	if p.Stats.TotalMessages != 50 || p.Stats.TotalSessions != 9 {
		t.Errorf("stats = %+v", p.Stats)
	}
	if len(p.Stats.ToolsUsed) != 2 {
		t.Errorf("toolsUsed = %v", p.Stats.ToolsUsed)
	}
}

func TestImport_ProfileOnly(t *testing.T) {
	t.Parallel()
	s, _ := openStore(t, nil)
	res, err := s.Import(context.Background(), strings.NewReader(`{"userProfile":{"name":"Ali"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Sessions != 0 || !res.Profile || s.Profile().Name != "Ali" {
		t.Errorf("result = %+v, name = %q", res, s.Profile().Name)
	}
}

func TestImport_Rejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		doc   string
		empty bool
	}{
		{"empty array", `[]`, true},
		{"empty object", `{}`, true},
		{"blank", "  ", true},
		{"malformed", `{"sessions": [`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, b := openStore(t, nil)
			_, err := s.Import(context.Background(), strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.empty != errors.Is(err, chat.ErrEmptyBackup) {
				t.Errorf("err = %v", err)
			}
			if len(b.PutCalls) != 0 {
				t.Errorf("rejected import wrote %v", b.PutCalls)
			}
		})
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	src, _ := openStore(t, nil)
	ctx := context.Background()
	sess, _ := src.NewSession(ctx, chat.ModeHeroSkill)
	_ = src.Append(ctx, sess.ID, chat.Message{Role: chat.RoleUser, Content: "plan"})
	_ = src.Append(ctx, sess.ID, chat.Message{Role: chat.RoleModel, Content: "steps", ImageURL: "file:///tmp/a.png"})

	var buf bytes.Buffer
	if err := src.Export(&buf); err != nil {
		t.Fatal(err)
	}

	dst, _ := openStore(t, nil)
	if _, err := dst.Import(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	got := dst.Sessions()
	if len(got) != 1 || got[0].Mode != chat.ModeHeroSkill || len(got[0].Messages) != 2 {
		t.Fatalf("imported = %+v", got)
	}
	if got[0].Messages[1].ImageURL != "file:///tmp/a.png" {
		t.Errorf("image url = %q", got[0].Messages[1].ImageURL)
	}
}

func TestMergeProfile_LastActiveDate(t *testing.T) {
	t.Parallel()
	older, newer := "2025-01-01T00:00:00Z", "2025-02-01T00:00:00Z"
	cur := chat.DefaultProfile()
	cur.LastActiveDate = &newer
	in := chat.DefaultProfile()
	in.LastActiveDate = &older

	if got := chat.MergeProfile(cur, in); *got.LastActiveDate != newer {
		t.Errorf("lastActiveDate = %s; want %s", *got.LastActiveDate, newer)
	}
	if got := chat.MergeProfile(in, cur); *got.LastActiveDate != newer {
		t.Errorf("lastActiveDate = %s; want %s", *got.LastActiveDate, newer)
	}
}
