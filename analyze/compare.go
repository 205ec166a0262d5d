package analyze

import "strings"

// StatComparison is one statistic lined up across two players.
type StatComparison struct {
	Stat   string  `json:"stat"`
	A      float64 `json:"a"`
	B      float64 `json:"b"`
	Winner int     `json:"winner"` // 0 tie, 1 player A, 2 player B
}

// Comparison is a head-to-head over a set of statistics.
type Comparison struct {
	PlayerA     string           `json:"player_a"`
	PlayerB     string           `json:"player_b"`
	ConfidenceA float64          `json:"confidence_a"`
	ConfidenceB float64          `json:"confidence_b"`
	Stats       []StatComparison `json:"stats"`
	WinsA       int              `json:"wins_a"`
	WinsB       int              `json:"wins_b"`
}

// Compare lines up the given statistics for two players. A statistic missing
// for a player counts as 0 for that player; the comparison is meant for
// stats already filtered by SelectStats.
func Compare(a, b *Analyzer, stats []string) *Comparison {
	cmp := &Comparison{
		PlayerA:     a.Name,
		PlayerB:     b.Name,
		ConfidenceA: a.Confidence(),
		ConfidenceB: b.Confidence(),
	}

	for _, stat := range stats {
		va, _ := a.Per90(stat)
		vb, _ := b.Per90(stat)

		sc := StatComparison{Stat: stat, A: va, B: vb}
		switch {
		case va > vb:
			sc.Winner = 1
			cmp.WinsA++
		case vb > va:
			sc.Winner = 2
			cmp.WinsB++
		}
		cmp.Stats = append(cmp.Stats, sc)
	}

	return cmp
}

// SelectStats picks up to max statistics suitable for a head-to-head:
// present for both players, non-zero for at least one, and neither composite
// ("Goals + Assists", "Tkl+Int") nor percentage-based. Composites double-
// count their parts and percentages don't compare across sample sizes.
func SelectStats(a, b *Analyzer, max int) []string {
	var picked []string
	for _, stat := range a.Stats() {
		if len(picked) >= max {
			break
		}
		if isComposite(stat) || isPercentage(stat) {
			continue
		}
		va, okA := a.Per90(stat)
		vb, okB := b.Per90(stat)
		if !okA || !okB {
			continue
		}
		if va == 0 && vb == 0 {
			continue
		}
		picked = append(picked, stat)
	}
	return picked
}

// isComposite detects derived statistics (sums, differences, ratios).
func isComposite(stat string) bool {
	if strings.Contains(stat, "+") || strings.Contains(stat, "/") {
		return true
	}
	lower := strings.ToLower(stat)
	return strings.Contains(stat, " - ") || strings.Contains(lower, " vs ")
}

// isPercentage detects rate statistics.
func isPercentage(stat string) bool {
	lower := strings.ToLower(stat)
	return strings.Contains(stat, "%") ||
		strings.Contains(lower, "percentage") ||
		strings.Contains(lower, "completion")
}
