package assignment

// SkillRequirement names a skill a candidate must hold at or above a
// proficiency floor to pass eligibility gate 3, and the weight it
// contributes to the SkillWeighted ranking strategy.
type SkillRequirement struct {
	Name               string
	MinProficiency     float64
	Weight             float64
	CertificationGraceSeconds int64
}

// Strategy selects how FindBestAssignee ranks the eligible candidate
// pool, per §4.7.
type Strategy string

const (
	StrategyRoundRobin    Strategy = "RoundRobin"
	StrategyLeastLoaded   Strategy = "LeastLoaded"
	StrategySkillWeighted Strategy = "SkillWeighted"
)

// Requirements is the per-step eligibility and ranking configuration
// FindBestAssignee consults.
type Requirements struct {
	RequiredRoles          []string
	RequiredSkills         []SkillRequirement
	ExcludePreviousSteps   []string
	MaxAssignmentsPerUser  int
	Strategy               Strategy
}

// EffectiveMaxAssignmentsPerUser defaults to 1 when unset, the most
// conservative cap (no user carries more than one non-terminal
// assignment unless a project raises the limit explicitly).
func (r Requirements) EffectiveMaxAssignmentsPerUser() int {
	if r.MaxAssignmentsPerUser <= 0 {
		return 1
	}
	return r.MaxAssignmentsPerUser
}

// EffectiveStrategy defaults to RoundRobin when unset.
func (r Requirements) EffectiveStrategy() Strategy {
	if r.Strategy == "" {
		return StrategyRoundRobin
	}
	return r.Strategy
}
