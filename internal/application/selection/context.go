// Package selection picks and ranks the offers to display for a page context.
package selection

import (
	"fmt"
	"strings"
)

// SelectionContext describes the page asking for offers. All fields are
// optional; missing fields widen the selection.
type SelectionContext struct {
	Category        string   `json:"category" form:"category"`
	Archetype       string   `json:"archetype" form:"archetype"`
	Topic           string   `json:"topic" form:"topic"`
	ExperienceLevel string   `json:"experienceLevel" form:"experienceLevel"`
	Device          string   `json:"device" form:"device"`
	QuizTopics      []string `json:"quizTopics" form:"quizTopics"`
}

// Canonical returns the context with every field lowercased and defaulted,
// so equivalent requests share one cache entry.
func (c SelectionContext) Canonical() SelectionContext {
	return SelectionContext{
		Category:        defaulted(c.Category, "general"),
		Archetype:       defaulted(c.Archetype, "general"),
		Topic:           defaulted(c.Topic, "all"),
		ExperienceLevel: defaulted(c.ExperienceLevel, "all"),
		Device:          strings.ToLower(strings.TrimSpace(c.Device)),
		QuizTopics:      lowered(c.QuizTopics),
	}
}

// CacheKey returns the canonical cache key for this context
func (c SelectionContext) CacheKey() string {
	canon := c.Canonical()
	return fmt.Sprintf("offers:%s:%s:%s:%s",
		canon.Category, canon.Archetype, canon.Topic, canon.ExperienceLevel)
}

func defaulted(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}

func lowered(vs []string) []string {
	if len(vs) == 0 {
		return nil
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
