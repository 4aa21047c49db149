// Package stats derives favorite statistics from in-memory result sets.
// Every top-N computation here is a frequency count with a deterministic
// tie-break: values tied on count rank in the order they were first seen,
// so feeding rows in favorite-marking order yields reproducible output.
package stats

import (
	"fmt"
	"math"

	"github.com/filmoteca/filmoteca/internal/model"
)

// Counter tallies string keys while remembering first-seen order.
type Counter struct {
	counts map[string]int
	order  []string
}

// NewCounter tallies the given values in order.
func NewCounter(values []string) *Counter {
	c := &Counter{counts: make(map[string]int, len(values))}
	for _, v := range values {
		c.Add(v)
	}
	return c
}

// Add increments the tally for v.
func (c *Counter) Add(v string) {
	if _, seen := c.counts[v]; !seen {
		c.order = append(c.order, v)
	}
	c.counts[v]++
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int { return len(c.order) }

// Entry is a tallied key with its count.
type Entry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// MostCommon returns up to n entries ordered by count descending; keys with
// equal counts keep their first-seen order. n <= 0 returns all entries.
func (c *Counter) MostCommon(n int) []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, v := range c.order {
		out = append(out, Entry{Value: v, Count: c.counts[v]})
	}
	// Stable insertion sort: short lists, and stability is the contract.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Count > out[j-1].Count; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Top returns the single most common entry, or false when empty.
func (c *Counter) Top() (Entry, bool) {
	if c.Len() == 0 {
		return Entry{}, false
	}
	return c.MostCommon(1)[0], true
}

// DecadeEntry is a favorite-decade bucket, e.g. {"1990s", 3}.
type DecadeEntry struct {
	Decade string `json:"decade"`
	Count  int    `json:"count"`
}

// UserStats is the per-user statistics document.
type UserStats struct {
	UserID            uint64       `json:"user_id"`
	UserName          string       `json:"user_name"`
	TotalFavorites    int          `json:"total_favorites"`
	TotalMinutes      int          `json:"total_minutes"`
	TotalHours        float64      `json:"total_hours"`
	TopGenres         []Entry      `json:"top_genres"`
	TopDirectors      []Entry      `json:"top_directors"`
	FavoriteDecade    *DecadeEntry `json:"favorite_decade"`
	TopClassification *Entry       `json:"top_classification"`
	AvgDuration       float64      `json:"avg_duration"`
}

// ForUser computes the statistics over a user's favorited movies, which must
// be supplied in marking order for the tie-breaks to be reproducible. A user
// with no favorites gets zero totals and null top-lists.
func ForUser(user model.User, favorites []model.Movie) UserStats {
	s := UserStats{UserID: user.ID, UserName: user.Name}
	if len(favorites) == 0 {
		return s
	}

	genres := NewCounter(nil)
	directors := NewCounter(nil)
	decades := NewCounter(nil)
	classifications := NewCounter(nil)
	total := 0
	for _, m := range favorites {
		genres.Add(m.Genre)
		directors.Add(m.Director)
		decades.Add(fmt.Sprintf("%ds", (m.Year/10)*10))
		classifications.Add(m.Classification)
		total += m.Duration
	}

	s.TotalFavorites = len(favorites)
	s.TotalMinutes = total
	s.TotalHours = round2(float64(total) / 60)
	s.TopGenres = genres.MostCommon(5)
	s.TopDirectors = directors.MostCommon(5)
	if top, ok := decades.Top(); ok {
		s.FavoriteDecade = &DecadeEntry{Decade: top.Value, Count: top.Count}
	}
	if top, ok := classifications.Top(); ok {
		s.TopClassification = &top
	}
	s.AvgDuration = round2(float64(total) / float64(len(favorites)))
	return s
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
