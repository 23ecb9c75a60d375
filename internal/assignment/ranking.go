package assignment

import (
	"context"
	"sort"

	"github.com/cloudshipai/loom/pkg/models"
)

// candidate pairs a user with the load figures the ranking strategies
// need, collected once per find_best_assignee call to avoid repeated
// repo round-trips during sort.
type candidate struct {
	user      models.User
	lifetime  int
	active    int
	skillSum  float64
}

// rank orders the eligible pool by strategy, highest-priority first, with
// ties broken by earliest JoinedAt (§4.7).
func rank(pool []candidate, strategy Strategy, skills []SkillRequirement) []candidate {
	skillWeight := make(map[string]float64, len(skills))
	for _, s := range skills {
		skillWeight[s.Name] = s.Weight
	}
	for i := range pool {
		pool[i].skillSum = weightedSkillSum(pool[i].user, skillWeight)
	}

	less := func(i, j int) bool {
		a, b := pool[i], pool[j]
		switch strategy {
		case StrategyLeastLoaded:
			if a.active != b.active {
				return a.active < b.active
			}
		case StrategySkillWeighted:
			if a.skillSum != b.skillSum {
				return a.skillSum > b.skillSum
			}
		default: // RoundRobin
			if a.lifetime != b.lifetime {
				return a.lifetime < b.lifetime
			}
		}
		return a.user.JoinedAt < b.user.JoinedAt
	}
	sort.SliceStable(pool, less)
	return pool
}

func weightedSkillSum(u models.User, weight map[string]float64) float64 {
	var sum float64
	for _, s := range u.Skills {
		w, ok := weight[s.Name]
		if !ok {
			continue
		}
		sum += w * s.Proficiency
	}
	return sum
}

// candidatesForUsers builds the candidate slice for a pool of
// already-eligible users, loading their lifetime/active assignment
// counts from repo.
func candidatesForUsers(ctx context.Context, repo Repo, users []models.User) ([]candidate, error) {
	out := make([]candidate, 0, len(users))
	for _, u := range users {
		active, err := repo.CountActiveByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		lifetime, err := repo.CountLifetimeByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate{user: u, active: active, lifetime: lifetime})
	}
	return out, nil
}
