package chat

import "time"

// Message roles.
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// Message is one entry of a chat session.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	Translation string `json:"translation,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
}

// Session is a titled conversation with its active mode.
type Session struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
	Mode     Mode      `json:"chatMode"`
}

func (s Session) clone() Session {
	s.Messages = append([]Message(nil), s.Messages...)
	return s
}

// UnlockedAchievement records when an achievement was earned.
type UnlockedAchievement struct {
	ID         string `json:"id"`
	UnlockedAt string `json:"unlockedAt"`
}

// Stats are usage counters kept on the profile.
type Stats struct {
	TotalMessages int      `json:"totalMessages"`
	TotalSessions int      `json:"totalSessions"`
	ToolsUsed     []string `json:"toolsUsed"`
}

// Profile holds what the coach knows about the user and their business, plus
// progress counters.
type Profile struct {
	Name        string `json:"name"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Skills      string `json:"skills"`
	Description string `json:"description"`
	InitialGoal string `json:"initialGoal"`

	DISCType string `json:"discType"`
	MBTIType string `json:"mbtiType"`

	BusinessName   string `json:"businessName"`
	BusinessType   string `json:"businessType"`
	BusinessStage  string `json:"businessStage"`
	InitialCapital string `json:"initialCapital"`
	CurrentCapital string `json:"currentCapital"`
	Goals          string `json:"goals"`

	UserLevel      int     `json:"userLevel"`
	TotalXP        int     `json:"totalXP"`
	CurrentStreak  int     `json:"currentStreak"`
	LastActiveDate *string `json:"lastActiveDate"`
	BusinessLevel  int     `json:"businessLevel"`
	BusinessXP     int     `json:"businessXP"`
	ManagerLevel   int     `json:"managerLevel"`
	ManagerXP      int     `json:"managerXP"`

	UnlockedAchievements []UnlockedAchievement `json:"unlockedAchievements"`
	Stats                Stats                 `json:"stats"`
}

// DefaultProfile returns the profile of a first-time user.
func DefaultProfile() Profile {
	return Profile{
		BusinessStage:        "Idea",
		UserLevel:            1,
		BusinessLevel:        1,
		ManagerLevel:         1,
		UnlockedAchievements: []UnlockedAchievement{},
		Stats:                Stats{ToolsUsed: []string{}},
	}
}

func (p Profile) clone() Profile {
	p.UnlockedAchievements = append([]UnlockedAchievement(nil), p.UnlockedAchievements...)
	p.Stats.ToolsUsed = append([]string(nil), p.Stats.ToolsUsed...)
	if p.LastActiveDate != nil {
		d := *p.LastActiveDate
		p.LastActiveDate = &d
	}
	return p
}

// Suggestion recommends switching the session to another mode.
type Suggestion struct {
	Mode   Mode   `json:"mode"`
	Reason string `json:"reason"`
	Label  string `json:"label"`
}

// BackupVersion is written into every export.
const BackupVersion = "2.6"

// Backup is the full export document.
type Backup struct {
	Version     string    `json:"version"`
	Date        time.Time `json:"date"`
	UserProfile *Profile  `json:"userProfile,omitempty"`
	Sessions    []Session `json:"sessions"`
}
