package client

import "math"

// Progress summarizes answered state across an attempt, merged from server
// confirmed answers and locally pending ones. Pure data, no I/O.
type Progress struct {
	Answered   int
	Total      int
	Percent    float64
	ByQuestion map[uint]bool
}

// MergeAnswered returns the set of question IDs answered in either source. A
// question counts as answered whether the server has confirmed it or the
// selection is still waiting to sync.
func MergeAnswered(confirmed []uint, pending map[uint]uint) map[uint]bool {
	answered := make(map[uint]bool, len(confirmed)+len(pending))
	for _, q := range confirmed {
		answered[q] = true
	}
	for q := range pending {
		answered[q] = true
	}
	return answered
}

// ComputeProgress classifies every question in the exam and derives the
// completion percentage. Answers for questions outside questionIDs are
// ignored.
func ComputeProgress(questionIDs []uint, confirmed []uint, pending map[uint]uint) Progress {
	answered := MergeAnswered(confirmed, pending)

	p := Progress{
		Total:      len(questionIDs),
		ByQuestion: make(map[uint]bool, len(questionIDs)),
	}
	for _, q := range questionIDs {
		p.ByQuestion[q] = answered[q]
		if answered[q] {
			p.Answered++
		}
	}
	if p.Total > 0 {
		p.Percent = math.Round(float64(p.Answered)/float64(p.Total)*10000) / 100
	}
	return p
}
