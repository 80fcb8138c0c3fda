// Package tally turns raw per-option vote counts into the figures shown
// next to a poll: percentages of the total and the leading option.
package tally

import "math"

type Option struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

type Result struct {
	Options    []Option `json:"options"`
	TotalVotes int      `json:"totalVotes"`
	WinnerID   string   `json:"winnerId,omitempty"`
}

// Compute fills in percentages and picks the winner. Percentages are
// rounded half away from zero per option, so they need not sum to 100.
// Ties go to the first option in render order; with no votes at all
// every percentage is 0 and there is no winner.
func Compute(options []Option) Result {
	total := 0
	for _, opt := range options {
		total += opt.Votes
	}

	result := Result{
		Options:    make([]Option, len(options)),
		TotalVotes: total,
	}

	best := -1
	for i, opt := range options {
		if total > 0 {
			opt.Percentage = int(math.Round(float64(opt.Votes) * 100 / float64(total)))
		} else {
			opt.Percentage = 0
		}
		result.Options[i] = opt

		if total > 0 && opt.Votes > best {
			best = opt.Votes
			result.WinnerID = opt.ID
		}
	}

	return result
}
