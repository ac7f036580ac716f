package scan

// Score computes the 0-100 safety score for a deduplicated issue list.
// Each issue subtracts its severity weight (CRITICAL 40, HIGH 25,
// MEDIUM 10, LOW 5) from 100; the result saturates at 0. There is no cap
// on how many deductions stack before flooring, so heavily-flagged
// repositories are indistinguishable once the floor is reached.
func Score(issues []Issue) int {
	score := 100
	for _, issue := range issues {
		score -= issue.Severity.Weight()
	}
	if score < 0 {
		return 0
	}
	return score
}

// Recommend maps a score to the three-tier recommendation:
// score >= 80 is SAFE, 40 <= score < 80 is CAUTION, below 40 is DANGEROUS.
func Recommend(score int) Recommendation {
	switch {
	case score >= 80:
		return RecommendationSafe
	case score >= 40:
		return RecommendationCaution
	default:
		return RecommendationDangerous
	}
}

// dedupKey identifies an issue for deduplication purposes. The key is
// intentionally coarse: the same type and line with a matching 50-char
// description prefix collapses to one finding even across files. This is
// a documented precision/recall trade-off, not an accident.
type dedupKey struct {
	issueType  string
	line       int
	descPrefix string
}

func keyOf(issue Issue) dedupKey {
	desc := issue.Description
	if len(desc) > 50 {
		desc = desc[:50]
	}
	return dedupKey{issueType: issue.Type, line: issue.Line, descPrefix: desc}
}

// Deduplicate collapses issues to uniqueness on (type, line, first 50
// characters of description). The first occurrence in collection order
// wins; later duplicates are dropped. The operation is idempotent.
func Deduplicate(issues []Issue) []Issue {
	seen := make(map[dedupKey]struct{}, len(issues))
	unique := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		key := keyOf(issue)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, issue)
	}
	return unique
}
