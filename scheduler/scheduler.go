// Package scheduler implements the Stream Scheduler (C7): it debounces a
// stream of text snapshots from the host and decides when an analysis
// should run, on word boundaries, completed sentences, or idle pauses.
package scheduler

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-ego/gse"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// wordBoundaryRunes are the characters that count as a "word boundary" per
// the glossary: whitespace or one of .,!?;:-()[]{}"'
const wordBoundaryRunes = `.,!?;:-()[]{}"'`

// DecisionKind is the closed set of scheduling outcomes.
type DecisionKind int

const (
	// Skip means no analysis should run for this snapshot.
	Skip DecisionKind = iota
	// AnalyzeNow means an analysis should be dispatched immediately.
	AnalyzeNow
	// AnalyzeAfter means an analysis should be scheduled after a delay.
	AnalyzeAfter
)

// Decision is the outcome of Scheduler.Decide for one snapshot.
type Decision struct {
	Kind  DecisionKind
	Delay time.Duration
}

// Scheduler debounces a stream of text snapshots. It tracks two distinct
// pieces of history, matching §4.7's wording precisely:
//   - the raw text of the previous Decide call ("has it changed since the
//     last decision"), used only for the top-level change gate;
//   - the text/word-count/timestamp of the last *analyzed* snapshot, used
//     by the word-boundary, word-count and idle-gap rules.
//
// It is not safe for concurrent use — the Coordinator owns it exclusively
// and runs single-threaded cooperative (§5).
type Scheduler struct {
	prevDecisionRaw string
	hasDecided      bool

	lastAnalyzedText       string
	lastAnalyzedNormalized string
	lastAnalyzedWordCount  int
	lastAnalysisAt         time.Time
	hasAnalyzed            bool

	shortTextDelay time.Duration
	longTextDelay  time.Duration
	minGap         time.Duration

	seg *gse.Segmenter
	now func() time.Time
}

// New returns a Scheduler with the §4.7 default delays: 100ms for text up
// to 20 runes, 50ms beyond that, and an 80ms minimum gap between analyses.
func New() *Scheduler {
	seg, err := gse.New("")
	var segPtr *gse.Segmenter
	if err == nil {
		segPtr = &seg
	}
	return &Scheduler{
		shortTextDelay: 100 * time.Millisecond,
		longTextDelay:  50 * time.Millisecond,
		minGap:         80 * time.Millisecond,
		seg:            segPtr,
		now:            time.Now,
	}
}

// Normalize applies NFC normalization and fullwidth-to-halfwidth folding so
// that textually-equivalent strings typed via different input methods (CJK
// keyboards commonly emit fullwidth punctuation) compare equal.
func Normalize(s string) string {
	return norm.NFC.String(width.Fold.String(s))
}

// wordCount tokenizes s with the bundled segmenter (falling back to a
// whitespace split if the segmenter failed to initialize) and counts
// non-whitespace tokens. This is deliberately not strings.Fields: a
// software keyboard sees CJK text with no inter-word spaces, where
// whitespace-splitting would always report "1 word".
func (s *Scheduler) wordCount(text string) int {
	if s.seg == nil {
		return len(strings.Fields(text))
	}
	tokens := s.seg.Cut(text, true)
	n := 0
	for _, tok := range tokens {
		if strings.TrimSpace(tok) != "" {
			n++
		}
	}
	return n
}

// Decide evaluates the §4.7 rules for one incoming text snapshot. The
// "changed since last decision" gate and the word-boundary check both
// operate on the raw, untrimmed snapshot: a trailing space is itself a
// meaningful edit (it completes a word boundary), so trimming it away
// before either check would make it indistinguishable from "unchanged".
func (s *Scheduler) Decide(text string) Decision {
	t := strings.TrimSpace(text)
	changedSinceLastDecision := !s.hasDecided || text != s.prevDecisionRaw
	differsFromLastAnalyzed := !s.hasAnalyzed || Normalize(t) != s.lastAnalyzedNormalized

	s.prevDecisionRaw = text
	s.hasDecided = true

	if !changedSinceLastDecision || !differsFromLastAnalyzed {
		return Decision{Kind: Skip}
	}

	switch {
	case utf8.RuneCountInString(t) < 5 && t != "":
		return Decision{Kind: Skip}
	case t == "" && s.hasAnalyzed && s.lastAnalyzedText != "":
		s.markAnalyzed(t)
		return Decision{Kind: AnalyzeNow}
	case endsOnWordBoundary(text):
		s.markAnalyzed(t)
		return Decision{Kind: AnalyzeNow}
	case s.wordCountDiffersByAtLeastOne(t):
		s.markAnalyzed(t)
		return Decision{Kind: AnalyzeNow}
	case s.now().Sub(s.lastAnalysisAt) < s.minGap:
		return Decision{Kind: Skip}
	default:
		delay := s.longTextDelay
		if utf8.RuneCountInString(t) <= 20 {
			delay = s.shortTextDelay
		}
		return Decision{Kind: AnalyzeAfter, Delay: delay}
	}
}

// wordCountDiffersByAtLeastOne only applies once an analyzed baseline
// exists: without one, the word-count rule has nothing to diff against and
// must not pre-empt the boundary/idle-gap rules on the very first snapshot.
func (s *Scheduler) wordCountDiffersByAtLeastOne(t string) bool {
	if !s.hasAnalyzed {
		return false
	}
	return s.wordCount(t) != s.lastAnalyzedWordCount
}

// MarkAnalyzed records that text has actually been analyzed (as opposed to
// merely decided-upon). The Coordinator calls this when a deferred
// AnalyzeAfter job actually fires, so the idle-gap and word-count rules
// compare against what was truly last sent for analysis.
func (s *Scheduler) MarkAnalyzed(text string) {
	s.markAnalyzed(strings.TrimSpace(text))
}

func (s *Scheduler) markAnalyzed(t string) {
	s.lastAnalyzedText = t
	s.lastAnalyzedNormalized = Normalize(t)
	s.lastAnalyzedWordCount = s.wordCount(t)
	s.lastAnalysisAt = s.now()
	s.hasAnalyzed = true
}

// Reset clears all debounce history, as the Coordinator's reset() requires.
func (s *Scheduler) Reset() {
	*s = Scheduler{
		shortTextDelay: s.shortTextDelay,
		longTextDelay:  s.longTextDelay,
		minGap:         s.minGap,
		seg:            s.seg,
		now:            s.now,
	}
}

func endsOnWordBoundary(t string) bool {
	if t == "" {
		return false
	}
	r := []rune(t)
	last := r[len(r)-1]
	if isSpace(last) {
		return true
	}
	return strings.ContainsRune(wordBoundaryRunes, last)
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
