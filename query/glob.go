package query

// matchWildcard implements a single shared matcher for both glob-style
// patterns (wildcards * and ?, used for bare pattern values and
// computed-field wildcard matching) and SQL LIKE patterns (% and _). The
// two share this implementation so that pattern semantics never drift
// between the two surface syntaxes. It uses the classic greedy
// two-pointer algorithm with backtracking on the last seen star, which
// avoids the exponential blowup of a naive recursive segment search.
func matchWildcard(s, pattern string, star, any rune) bool {
	sr := []rune(s)
	pr := []rune(pattern)

	si, pi := 0, 0
	starIdx, matchIdx := -1, 0

	for si < len(sr) {
		switch {
		case pi < len(pr) && (pr[pi] == any || pr[pi] == sr[si]):
			si++
			pi++
		case pi < len(pr) && pr[pi] == star:
			starIdx = pi
			matchIdx = si
			pi++
		case starIdx != -1:
			pi = starIdx + 1
			matchIdx++
			si = matchIdx
		default:
			return false
		}
	}

	for pi < len(pr) && pr[pi] == star {
		pi++
	}

	return pi == len(pr)
}

// MatchGlob matches s against a glob pattern using '*' and '?' wildcards.
func MatchGlob(s, pattern string) bool {
	return matchWildcard(s, pattern, '*', '?')
}

// MatchLike matches s against a SQL LIKE pattern using '%' and '_'
// wildcards.
func MatchLike(s, pattern string) bool {
	return matchWildcard(s, pattern, '%', '_')
}
