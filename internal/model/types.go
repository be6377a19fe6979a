// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tier bounds.
const (
	MinTier Tier = 1
	MaxTier Tier = 8
)

// ErrInvalidTier is returned when a tier falls outside MinTier..MaxTier.
var ErrInvalidTier = errors.New("invalid tier")

// Tier partitions cached content by intensity (1..8).
type Tier int

// Valid reports whether t is within MinTier..MaxTier.
func (t Tier) Valid() bool {
	return t >= MinTier && t <= MaxTier
}

// Tag returns the listing flair a tier is matched against.
func (t Tier) Tag() string {
	return fmt.Sprintf("Tier %d", int(t))
}

// ClampTier pins t into MinTier..MaxTier.
func ClampTier(t Tier) Tier {
	if t < MinTier {
		return MinTier
	}
	if t > MaxTier {
		return MaxTier
	}
	return t
}

// ParseTier validates an integer tier from user input.
func ParseTier(v int) (Tier, error) {
	t := Tier(v)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidTier, v, MinTier, MaxTier)
	}
	return t, nil
}

// AllTiers lists every tier in ascending order.
func AllTiers() []Tier {
	tiers := make([]Tier, 0, MaxTier)
	for t := MinTier; t <= MaxTier; t++ {
		tiers = append(tiers, t)
	}
	return tiers
}

// Level is the roadmap level of the user.
type Level int

// Roadmap levels.
const (
	LevelIntern Level = iota + 1
	LevelJunior
	LevelMiddle
	LevelSenior
	LevelLead
)

var levelNames = map[Level]string{
	LevelIntern: "Intern",
	LevelJunior: "Junior",
	LevelMiddle: "Middle",
	LevelSenior: "Senior",
	LevelLead:   "Lead",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Next returns the following level, or l itself at LevelLead.
func (l Level) Next() Level {
	if l >= LevelLead {
		return LevelLead
	}
	return l + 1
}

// ParseLevel accepts a level name (case-insensitive).
func ParseLevel(s string) (Level, error) {
	for lvl, name := range levelNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return lvl, nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// ContentItem is one image discovered by a fetcher.
type ContentItem struct {
	URL       string
	Title     string
	Thumbnail string
	Tag       string
	Flagged   bool
}

// UserProgress is the singleton progress record.
type UserProgress struct {
	ID                int
	Points            int
	Level             Level
	SessionsAtLevel   int
	ContentTier       Tier
	FastSessionStreak int
}

// DefaultProgress returns the record created on first run.
func DefaultProgress() UserProgress {
	return UserProgress{
		ID:          1,
		Level:       LevelIntern,
		ContentTier: MinTier,
	}
}

// RoadmapTask is a unit of work that awards points on completion.
type RoadmapTask struct {
	ID           int64
	Title        string
	Description  string
	Level        Level
	PointsReward int
	Completed    bool
}

// NotRecorded marks phase timings that were not captured.
const NotRecorded = -1.0

// TrainingSession is one finished session in the append-only history.
type TrainingSession struct {
	ID                 int64
	Date               time.Time
	DurationSeconds    float64
	Level              Level
	ContentTier        Tier
	FocusPhaseUsed     bool
	ExplorationSeconds float64
	FocusSeconds       float64
}

// SessionOutcome is what the session engine hands to progression.
type SessionOutcome struct {
	FinishedAt         time.Time
	Duration           time.Duration
	FocusPhaseUsed     bool
	ExplorationSeconds float64
	FocusSeconds       float64
}

// Credentials are the OAuth client credentials for the listing API.
type Credentials struct {
	ClientID     string `json:"ClientId" envconfig:"CLIENT_ID"`
	ClientSecret string `json:"ClientSecret" envconfig:"CLIENT_SECRET"`
}

// Valid reports whether both fields are non-blank.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// ContentRole tags user-imported content.
type ContentRole string

// Content roles.
const (
	RoleExploration ContentRole = "exploration"
	RoleFocus       ContentRole = "focus"
)

// ParseRole validates a role name.
func ParseRole(s string) (ContentRole, error) {
	switch ContentRole(strings.ToLower(strings.TrimSpace(s))) {
	case RoleExploration:
		return RoleExploration, nil
	case RoleFocus:
		return RoleFocus, nil
	}
	return "", fmt.Errorf("unknown content role %q (want %s or %s)", s, RoleExploration, RoleFocus)
}

// Progress reports download progress for a tier.
type Progress struct {
	Tier       Tier
	Downloaded int
	Total      int
}
