package incentive

// Precedence names the policy applied when several assignments match the same
// approved entry.
type Precedence string

const (
	// PrecedenceAllMatches creates one earning per matching assignment. A
	// consultant with both a global and a project-specific leader triggers
	// both.
	PrecedenceAllMatches Precedence = "ALL_MATCHES"

	// PrecedenceMostSpecific would keep only project-scoped matches when any
	// exist, falling back to global ones otherwise. Not currently in use;
	// defined so a product change is a policy swap, not a rewrite.
	PrecedenceMostSpecific Precedence = "MOST_SPECIFIC"
)

// apply filters planned drafts according to the policy. Drafts arrive paired
// with the assignment that produced them.
func (p Precedence) apply(matches []match) []match {
	if p != PrecedenceMostSpecific {
		return matches
	}
	var scoped []match
	for _, m := range matches {
		if m.assignment.ProjectID != nil {
			scoped = append(scoped, m)
		}
	}
	if len(scoped) > 0 {
		return scoped
	}
	return matches
}
