package risk

import (
	"time"

	"github.com/mbd888/moodguard/internal/diary"
	"github.com/mbd888/moodguard/internal/emotion"
)

// Scores are the two signals derived from an entry window.
type Scores struct {
	ConsecutiveScore int
	ScoreInPeriod    int
	// LastNegativeDate is the date of the most recent entry with a non-zero weight.
	LastNegativeDate *time.Time
	// Unknown holds entries whose emotion could not be scored. They count as 0.
	Unknown []diary.Entry
}

// Aggregate computes Scores over entries ordered most recent first.
// The caller bounds entries to the monitoring window; no date filtering happens here.
func Aggregate(entries []diary.Entry) Scores {
	var s Scores
	streak := true
	for _, e := range entries {
		w, err := emotion.Score(e.Emotion)
		if err != nil {
			s.Unknown = append(s.Unknown, e)
			w = 0
		}

		s.ScoreInPeriod += w
		if w == 0 {
			streak = false
			continue
		}
		if streak {
			s.ConsecutiveScore += w
		}
		if s.LastNegativeDate == nil {
			d := e.Date
			s.LastNegativeDate = &d
		}
	}
	return s
}
