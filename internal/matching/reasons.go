package matching

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/fruit-matcher/internal/fruit"
)

// Reasons lists the seeker's preferences the matched candidate satisfies, one
// line each, followed by the mutual score. Penalties are not reported.
func Reasons(seeker *fruit.Fruit, match Match) []string {
	var reasons []string
	if match.Candidate == nil {
		return []string{mutualLine(match.MutualScore)}
	}

	prefs := seeker.Preferences
	attrs := match.Candidate.Attributes

	if line, ok := rangeReason("Size", prefs.Size, attrs.Size); ok {
		reasons = append(reasons, line)
	}
	if line, ok := rangeReason("Weight", prefs.Weight, attrs.Weight); ok {
		reasons = append(reasons, line)
	}
	if line, ok := boolReason("stem", prefs.HasStem, attrs.HasStem); ok {
		reasons = append(reasons, line)
	}
	if line, ok := boolReason("leaf", prefs.HasLeaf, attrs.HasLeaf); ok {
		reasons = append(reasons, line)
	}
	if line, ok := boolReason("worm", prefs.HasWorm, attrs.HasWorm); ok {
		reasons = append(reasons, line)
	}
	if len(prefs.ShineFactor) > 0 && attrs.ShineFactor != nil && prefs.ShineFactor.Contains(*attrs.ShineFactor) {
		reasons = append(reasons, fmt.Sprintf("Shine factor %s is one of the preferred (%s)", *attrs.ShineFactor, joinShine(prefs.ShineFactor)))
	}
	if line, ok := boolReason("chemicals", prefs.HasChemicals, attrs.HasChemicals); ok {
		reasons = append(reasons, line)
	}

	return append(reasons, mutualLine(match.MutualScore))
}

func rangeReason(label string, pref *fruit.Range, value *float64) (string, bool) {
	if !pref.Active() || value == nil {
		return "", false
	}
	v := *value
	if pref.Min != nil && v < *pref.Min {
		return "", false
	}
	if pref.Max != nil && v > *pref.Max {
		return "", false
	}
	return fmt.Sprintf("%s %s is within the preferred range %s", label, formatNumber(v), formatRange(pref)), true
}

func boolReason(noun string, pref, value *bool) (string, bool) {
	if pref == nil || value == nil || *pref != *value {
		return "", false
	}
	if *value {
		return fmt.Sprintf("Has %s, as preferred", noun), true
	}
	return fmt.Sprintf("Has no %s, as preferred", noun), true
}

func mutualLine(score float64) string {
	return fmt.Sprintf("Mutual compatibility: %s%%", strconv.FormatFloat(score, 'f', 1, 64))
}

func formatRange(r *fruit.Range) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%s-%s", formatNumber(*r.Min), formatNumber(*r.Max))
	case r.Min != nil:
		return ">= " + formatNumber(*r.Min)
	default:
		return "<= " + formatNumber(*r.Max)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func joinShine(set fruit.ShineSet) string {
	names := make([]string, 0, len(set))
	for _, s := range set {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
