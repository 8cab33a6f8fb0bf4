// Package scoring turns a (target prompt, player attempt, difficulty) triple
// into a reproducible score breakdown. Everything here is pure: no clock, no
// randomness, no shared state.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/promptduel/server/internal/models"
)

// ScoreResult is the full breakdown for one attempt.
type ScoreResult struct {
	AccuracyScore     int            // 0-100, unscaled, what the player sees
	LeaderboardPoints int            // (accuracy + bonuses) * difficulty multiplier
	Matched           []string       // target words found in the attempt, target order
	Missed            []string       // target words absent from the attempt, target order
	Extra             []string       // attempt words not in the target
	Bonuses           []models.Bonus // extras awarded on top of the accuracy score
	Explanation       string
}

// Normalize lowercases, maps punctuation to spaces, collapses runs of
// whitespace and trims. Normalize is idempotent.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the normalized word sequence, duplicates preserved.
func Tokens(text string) []string {
	norm := Normalize(text)
	if norm == "" {
		return nil
	}
	return strings.Split(norm, " ")
}

// UniqueWords returns the normalized word set in first-occurrence order.
func UniqueWords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range Tokens(text) {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Score evaluates an attempt against the target prompt. Same inputs always
// produce the same output. The difficulty metadata is accepted for parity with
// the corpus contract; only the tier affects the result today.
func Score(target, attempt string, tier models.DifficultyTier, _ models.DifficultyMeta) ScoreResult {
	targetTokens := Tokens(target)
	targetWords := UniqueWords(target)
	attemptTokens := Tokens(attempt)
	attemptWords := UniqueWords(attempt)

	// Empty attempt after trimming: zero everything, miss everything.
	if len(attemptWords) == 0 {
		return ScoreResult{
			Matched:     []string{},
			Missed:      append([]string{}, targetWords...),
			Extra:       []string{},
			Explanation: "Empty prompt submitted",
		}
	}
	// Target with no words cannot be scored against.
	if len(targetWords) == 0 {
		return ScoreResult{
			Matched:     []string{},
			Missed:      []string{},
			Extra:       append([]string{}, attemptWords...),
			Explanation: "The target prompt has no scorable words",
		}
	}

	targetSet := wordSet(targetWords)
	attemptSet := wordSet(attemptWords)

	matched := make([]string, 0, len(targetWords))
	missed := make([]string, 0, len(targetWords))
	for _, w := range targetWords {
		if _, ok := attemptSet[w]; ok {
			matched = append(matched, w)
		} else {
			missed = append(missed, w)
		}
	}
	extra := make([]string, 0, len(attemptWords))
	for _, w := range attemptWords {
		if _, ok := targetSet[w]; !ok {
			extra = append(extra, w)
		}
	}

	// Base score: word overlap minus noise, plus a length-similarity bonus.
	wordMatchScore := float64(len(matched)) / float64(len(targetWords)) * 60
	extraPenalty := math.Min(float64(len(extra))*1.5, 15)
	lengthBonus := 0.0
	ratio := float64(min(len(attemptWords), len(targetWords))) / float64(max(len(attemptWords), len(targetWords)))
	if ratio >= 0.8 {
		lengthBonus = 10
	} else if ratio >= 0.6 {
		lengthBonus = 5
	}
	score := math.Max(0, wordMatchScore-extraPenalty+lengthBonus)

	// Exact and substring overrides on the normalized strings.
	normTarget := strings.Join(targetTokens, " ")
	normAttempt := strings.Join(attemptTokens, " ")
	if normAttempt == normTarget {
		score = 100
	} else if strings.Contains(normAttempt, normTarget) || strings.Contains(normTarget, normAttempt) {
		score = math.Max(score, 90)
	}

	score += categoryBonus(targetSet, attemptSet)
	score += orderBonus(targetTokens, attemptTokens)

	// Completely unrelated answers to a non-trivial target lose ground.
	if len(matched) == 0 && len(targetWords) > 3 {
		score = math.Max(0, score-20)
	}

	accuracy := int(math.Round(math.Min(100, math.Max(0, score))))

	bonuses := collectBonuses(matched, extra, targetWords, attemptWords, attemptSet)
	total := accuracy
	for _, b := range bonuses {
		total += b.Points
	}
	points := int(math.Round(float64(total) * tier.Multiplier()))

	return ScoreResult{
		AccuracyScore:     accuracy,
		LeaderboardPoints: points,
		Matched:           matched,
		Missed:            missed,
		Extra:             extra,
		Bonuses:           bonuses,
		Explanation:       explain(accuracy, matched, missed, extra, len(targetWords)),
	}
}

// categoryBonus rewards hitting the same semantic categories as the target.
// Each category contributes at most 10 points.
func categoryBonus(targetSet, attemptSet map[string]struct{}) float64 {
	var bonus float64
	for _, keywords := range semanticCategories {
		var targetHits, attemptHits int
		for _, kw := range keywords {
			if _, ok := targetSet[kw]; ok {
				targetHits++
			}
			if _, ok := attemptSet[kw]; ok {
				attemptHits++
			}
		}
		if targetHits > 0 && attemptHits > 0 {
			bonus += math.Min(float64(attemptHits)/float64(targetHits)*5, 10)
		}
	}
	return bonus
}

// orderBonus scans the target's word sequence for consecutive pairs that also
// appear adjacent and in order in the attempt, and rewards the longest run.
func orderBonus(targetTokens, attemptTokens []string) float64 {
	if len(targetTokens) < 2 || len(attemptTokens) < 2 {
		return 0
	}
	index := make(map[string]int, len(attemptTokens))
	for i := len(attemptTokens) - 1; i >= 0; i-- {
		index[attemptTokens[i]] = i // first occurrence wins
	}
	run, longest := 0, 0
	for i := 0; i < len(targetTokens)-1; i++ {
		cur, okCur := index[targetTokens[i]]
		next, okNext := index[targetTokens[i+1]]
		if okCur && okNext && next == cur+1 {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return math.Min(float64(longest)*3, 15)
}

// collectBonuses awards the independently testable extras that stack on top
// of the accuracy score before the difficulty multiplier is applied.
func collectBonuses(matched, extra, targetWords, attemptWords []string, attemptSet map[string]struct{}) []models.Bonus {
	var bonuses []models.Bonus

	matchRatio := float64(len(matched)) / float64(len(targetWords))
	if len(attemptWords) <= int(math.Floor(float64(len(targetWords))*0.8)) && matchRatio >= 0.7 {
		bonuses = append(bonuses, models.Bonus{
			Kind:   "conciseness",
			Points: 5,
			Detail: fmt.Sprintf("captured %d of %d words with a shorter prompt", len(matched), len(targetWords)),
		})
	}

	if len(matched) >= 3 {
		for _, adj := range creativeAdjectives {
			if _, ok := attemptSet[adj]; ok {
				bonuses = append(bonuses, models.Bonus{
					Kind:   "creativity",
					Points: 3,
					Detail: fmt.Sprintf("descriptive word %q", adj),
				})
				break
			}
		}
	}

	matchedSet := wordSet(matched)
	for _, term := range technicalTerms {
		if _, ok := matchedSet[term]; ok {
			bonuses = append(bonuses, models.Bonus{
				Kind:   "technical",
				Points: 2,
				Detail: fmt.Sprintf("shared technical term %q", term),
			})
		}
	}

	if len(matched) == len(targetWords) && len(extra) == 0 {
		bonuses = append(bonuses, models.Bonus{
			Kind:   "perfect",
			Points: 10,
			Detail: "every target word matched with nothing extra",
		})
	}

	return bonuses
}

// explain builds the human-readable summary shown with a result.
func explain(accuracy int, matched, missed, extra []string, targetCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You matched %d out of %d key words from the original prompt. ", len(matched), targetCount)

	switch {
	case accuracy >= 90:
		b.WriteString("Excellent! You captured almost everything important.")
	case accuracy >= 80:
		b.WriteString("Great job! You got most of the key concepts and details.")
	case accuracy >= 70:
		b.WriteString("Good attempt! You captured the main elements well.")
	case accuracy >= 60:
		b.WriteString("Not bad! You got some key words but missed others.")
	case accuracy >= 40:
		b.WriteString("Decent effort, but you missed several important elements.")
	case accuracy >= 20:
		b.WriteString("Try to focus on the main subjects, actions and visual details.")
	default:
		b.WriteString("This doesn't seem to match the image well. Look more carefully at what you see.")
	}

	if len(missed) > 0 {
		b.WriteString(" Missed: ")
		b.WriteString(strings.Join(firstN(missed, 5), ", "))
		if len(missed) > 5 {
			fmt.Fprintf(&b, " and %d more", len(missed)-5)
		}
		b.WriteString(".")
	}
	if len(matched) > 0 {
		b.WriteString(" Correctly included: ")
		b.WriteString(strings.Join(firstN(matched, 5), ", "))
		if len(matched) > 5 {
			fmt.Fprintf(&b, " and %d more", len(matched)-5)
		}
		b.WriteString(".")
	}
	if len(extra) > 0 {
		fmt.Fprintf(&b, " You also included %d words not in the original.", len(extra))
	}
	return b.String()
}

func firstN(words []string, n int) []string {
	if len(words) <= n {
		return words
	}
	return words[:n]
}
