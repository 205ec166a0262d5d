// Package analyze consumes extraction results: per-stat lookup over a
// scouting report and two-player comparison.
package analyze

import (
	"math"
	"strings"

	"github.com/tarbouchdata/scoutscrape/models"
)

// Confidence midpoint and scale, in minutes played. Below ~900 minutes a
// season's per-90 numbers are noisy; the logistic weight reflects that.
const (
	confidenceMidpoint = 900.0
	confidenceScale    = 300.0
)

type statLine struct {
	per90      models.Value
	percentile models.Value
}

// Analyzer indexes one player's extraction result by statistic name.
type Analyzer struct {
	Name     string
	Position string
	Minutes  float64

	stats map[string]statLine
	order []string
}

// New builds an Analyzer from an extraction result. Records without a text
// "statistic" field are ignored. If the table carries a "Minutes" statistic
// its value is used as the sample size; otherwise call SetMinutes.
func New(name string, res *models.Result) *Analyzer {
	a := &Analyzer{
		Name:     name,
		Position: res.Meta.Position,
		stats:    make(map[string]statLine, len(res.Records)),
	}

	for _, rec := range res.Records {
		nameVal, ok := rec.Get("statistic")
		if !ok || nameVal.Kind != models.KindText || nameVal.Text == "" {
			continue
		}
		key := statKey(nameVal.Text)
		if _, dup := a.stats[key]; dup {
			// Duplicate statistic rows happen when the site repeats a
			// section; first occurrence wins, matching document order.
			continue
		}

		per90, _ := rec.Get("per_90")
		pct, _ := rec.Get("percentile")
		a.stats[key] = statLine{per90: per90, percentile: pct}
		a.order = append(a.order, nameVal.Text)

		if key == "minutes" {
			if v, ok := numeric(per90); ok {
				a.Minutes = v
			}
		}
	}

	return a
}

// SetMinutes overrides the playing-time sample size.
func (a *Analyzer) SetMinutes(minutes float64) { a.Minutes = minutes }

// Stats lists the statistic names in source order.
func (a *Analyzer) Stats() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Per90 returns the per-90 value of a statistic, if present and numeric.
func (a *Analyzer) Per90(stat string) (float64, bool) {
	line, ok := a.stats[statKey(stat)]
	if !ok {
		return 0, false
	}
	return numeric(line.per90)
}

// Percentile returns the league percentile of a statistic, if present.
func (a *Analyzer) Percentile(stat string) (int64, bool) {
	line, ok := a.stats[statKey(stat)]
	if !ok || line.percentile.Kind != models.KindInt {
		return 0, false
	}
	return line.percentile.Int, true
}

// Confidence weights this player's numbers by minutes played: a logistic
// curve centred on 900 minutes, scale 300.
func (a *Analyzer) Confidence() float64 {
	return 1 / (1 + math.Exp(-(a.Minutes-confidenceMidpoint)/confidenceScale))
}

// statKey canonicalises a statistic name for lookup.
func statKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// numeric extracts a float from any numeric value kind.
func numeric(v models.Value) (float64, bool) {
	switch v.Kind {
	case models.KindInt:
		return float64(v.Int), true
	case models.KindFloat, models.KindPercent:
		return v.Float, true
	default:
		return 0, false
	}
}
