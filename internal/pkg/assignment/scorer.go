// Package assignment ranks officers for an issue by balancing specialization
// match against current workload. Pure computation over a pool snapshot;
// committing an assignment is the state machine's job.
package assignment

import (
	"sort"
	"strconv"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/internal/pkg/env"
)

// Weights are the tunable parameters of the scoring formula.
type Weights struct {
	Base              int // starting score for every candidate
	LoadPenalty       int // deducted per active task
	OverloadThreshold int // active tasks above this flag (and further penalize) a candidate
	OverloadPenalty   int // extra deduction once over the threshold
	TrustBaseline     int // trust score that earns no bonus
	TrustDivisor      int // bonus = (trust - baseline) / divisor, floored at 0
}

func DefaultWeights() Weights {
	return Weights{
		Base:              100,
		LoadPenalty:       15,
		OverloadThreshold: 5,
		OverloadPenalty:   50,
		TrustBaseline:     models.DefaultTrustScore,
		TrustDivisor:      2,
	}
}

// WeightsFromEnv reads overrides from the environment, falling back to the
// defaults for anything unset.
func WeightsFromEnv() Weights {
	w := DefaultWeights()
	w.Base = envInt("ASSIGN_SCORE_BASE", w.Base)
	w.LoadPenalty = envInt("ASSIGN_LOAD_PENALTY", w.LoadPenalty)
	w.OverloadThreshold = envInt("ASSIGN_OVERLOAD_THRESHOLD", w.OverloadThreshold)
	w.OverloadPenalty = envInt("ASSIGN_OVERLOAD_PENALTY", w.OverloadPenalty)
	return w
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(env.GetEnv(key, "")); err == nil {
		return v
	}
	return def
}

// Suggestion is one ranked candidate. Overloaded officers stay in the list;
// the moderator keeps override authority.
type Suggestion struct {
	OfficerID    uint   `json:"officer_id"`
	Name         string `json:"name"`
	Department   string `json:"department"`
	Score        int    `json:"score"`
	ActiveTasks  int    `json:"active_tasks"`
	IsOverloaded bool   `json:"is_overloaded"`
	Recommended  bool   `json:"recommended"`
	Reason       string `json:"reason"`
}

type Scorer struct {
	weights Weights
}

func NewScorer(w Weights) *Scorer {
	if w.TrustDivisor <= 0 {
		w.TrustDivisor = 1
	}
	return &Scorer{weights: w}
}

// Rank scores and sorts the pool descending. The top candidate is flagged
// recommended. crossDepartment marks a fallback pool drawn from outside the
// issue's department.
func (s *Scorer) Rank(pool []models.User, crossDepartment bool) []Suggestion {
	suggestions := make([]Suggestion, 0, len(pool))
	for _, officer := range pool {
		suggestions = append(suggestions, s.score(officer, crossDepartment))
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})

	if len(suggestions) > 0 {
		suggestions[0].Recommended = true
	}
	return suggestions
}

func (s *Scorer) score(officer models.User, crossDepartment bool) Suggestion {
	w := s.weights

	score := w.Base - officer.ActiveTasks*w.LoadPenalty
	overloaded := officer.ActiveTasks > w.OverloadThreshold
	if overloaded {
		score -= w.OverloadPenalty
	}

	trustBonus := (officer.TrustScore - w.TrustBaseline) / w.TrustDivisor
	if trustBonus > 0 {
		score += trustBonus
	}
	if score < 0 {
		score = 0
	}

	reason := "Balanced workload"
	switch {
	case crossDepartment:
		reason = "Cross-department backup"
	case officer.ActiveTasks == 0:
		reason = "Currently idle"
	}

	return Suggestion{
		OfficerID:    officer.ID,
		Name:         officer.Name,
		Department:   officer.Department,
		Score:        score,
		ActiveTasks:  officer.ActiveTasks,
		IsOverloaded: overloaded,
		Reason:       reason,
	}
}
