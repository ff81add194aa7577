// Package transcript combines word-level transcription output with speaker
// diarization turns into a speaker-labelled dialogue.
package transcript

import (
	"sort"
	"strings"

	"github.com/mrsingh-rishi/accord/model"
)

// Dialogue is an ordered sequence of speaker blocks.
type Dialogue []model.Block

// Merge labels every word with the speaker whose turn contains the word's
// start time and groups consecutive words of the same speaker into blocks.
func Merge(turns []model.SpeakerTurn, words []model.Word) Dialogue {
	return Group(Label(turns, words))
}

// Label assigns a speaker to each word. A word belongs to a turn when
// turn.Start <= word.Start <= turn.End. When several turns match, the one
// that comes first in turns wins. Words outside every turn are labelled
// model.UnknownSpeaker.
func Label(turns []model.SpeakerTurn, words []model.Word) []model.LabeledWord {
	ix := newTurnIndex(turns)
	labeled := make([]model.LabeledWord, len(words))
	for i, w := range words {
		speaker := model.UnknownSpeaker
		if idx, ok := ix.lookup(w.Start); ok {
			speaker = turns[idx].Speaker
		}
		labeled[i] = model.LabeledWord{Word: w, Speaker: speaker}
	}
	return labeled
}

// Group concatenates the text of consecutive words sharing a speaker.
// Word texts are joined as-is; the transcription model already encodes the
// spacing between words.
func Group(labeled []model.LabeledWord) Dialogue {
	var (
		out Dialogue
		b   strings.Builder
	)
	for i, w := range labeled {
		if i == 0 || w.Speaker != labeled[i-1].Speaker {
			if i > 0 {
				out[len(out)-1].Text = b.String()
				b.Reset()
			}
			out = append(out, model.Block{Speaker: w.Speaker})
		}
		b.WriteString(w.Text)
	}
	if len(out) > 0 {
		out[len(out)-1].Text = b.String()
	}
	return out
}

// String renders the dialogue as markdown-style speaker blocks:
//
//	**SPEAKER 00:** Hello there.
//
//	**SPEAKER 01:** Hi.
func (d Dialogue) String() string {
	var b strings.Builder
	for _, blk := range d {
		b.WriteString("\n\n**")
		b.WriteString(strings.ReplaceAll(blk.Speaker, "_", " "))
		b.WriteString(":**")
		b.WriteString(blk.Text)
	}
	return strings.TrimSpace(b.String())
}

// Speakers returns the block labels in order of appearance, one per block.
func (d Dialogue) Speakers() []string {
	out := make([]string, len(d))
	for i, blk := range d {
		out[i] = blk.Speaker
	}
	return out
}

// Overlaps reports whether any two turns share more than a boundary point.
func Overlaps(turns []model.SpeakerTurn) bool {
	if len(turns) < 2 {
		return false
	}
	sorted := make([]model.SpeakerTurn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	maxEnd := sorted[0].End
	for _, t := range sorted[1:] {
		if t.Start < maxEnd {
			return true
		}
		if t.End > maxEnd {
			maxEnd = t.End
		}
	}
	return false
}

// turnIndex answers "first turn (in input order) containing t" without a
// full scan. Turns are ordered by start time; maxEnd[i] is the largest end
// among the first i+1 turns in that order, so the backward scan can stop as
// soon as no earlier turn can still reach t.
type turnIndex struct {
	turns  []model.SpeakerTurn
	order  []int
	maxEnd []float64
}

func newTurnIndex(turns []model.SpeakerTurn) *turnIndex {
	order := make([]int, len(turns))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return turns[order[a]].Start < turns[order[b]].Start })

	maxEnd := make([]float64, len(order))
	for i, idx := range order {
		maxEnd[i] = turns[idx].End
		if i > 0 && maxEnd[i-1] > maxEnd[i] {
			maxEnd[i] = maxEnd[i-1]
		}
	}
	return &turnIndex{turns: turns, order: order, maxEnd: maxEnd}
}

func (ix *turnIndex) lookup(t float64) (int, bool) {
	// k is the number of turns starting at or before t.
	k := sort.Search(len(ix.order), func(i int) bool { return ix.turns[ix.order[i]].Start > t })
	best := -1
	for j := k - 1; j >= 0 && ix.maxEnd[j] >= t; j-- {
		idx := ix.order[j]
		if ix.turns[idx].End >= t && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best, best >= 0
}
