// Package classify scores request text against the capability registry.
// Classification is deterministic for a fixed registry and input, and
// repeated calls return identical results.
package classify

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/pkg/models"
)

// ErrNoConfidentMatch is returned when no capability's score exceeds the
// confidence threshold. Callers should respond with a clarification prompt.
var ErrNoConfidentMatch = errors.New("no capability matched with confidence")

const (
	// DefaultThreshold is the minimum normalized score to qualify.
	DefaultThreshold = 0.15
	// DefaultEpsilon is the score difference under which two capabilities
	// are considered tied and registry declaration order decides.
	DefaultEpsilon = 1e-6
	// DefaultHintBoost is added to the score of capabilities that accept
	// the kind of an attached artifact.
	DefaultHintBoost = 0.05
)

// connectives are sequencing markers that indicate a multi-step request.
var connectives = []string{"and then", "after that", "followed by", "then", "and"}

// Match is one qualifying capability with its score and the text position
// of its earliest triggering phrase.
type Match struct {
	CapabilityID string
	Score        float64
	Position     int
}

// Result is an ordered list of qualifying capabilities. For multi-step
// requests the order is the left-to-right order of trigger phrases in the
// text, which becomes pipeline order.
type Result struct {
	Matches []Match
}

// Config holds the classifier tunables. Zero values mean defaults.
type Config struct {
	Threshold float64
	Epsilon   float64
	HintBoost float64
}

// Classifier scores request text against an immutable registry.
type Classifier struct {
	reg       *registry.Registry
	threshold float64
	epsilon   float64
	hintBoost float64
}

// New creates a Classifier over the given registry.
func New(reg *registry.Registry, cfg Config) *Classifier {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.HintBoost == 0 {
		cfg.HintBoost = DefaultHintBoost
	}
	return &Classifier{
		reg:       reg,
		threshold: cfg.Threshold,
		epsilon:   cfg.Epsilon,
		hintBoost: cfg.HintBoost,
	}
}

// Classify scores the text against every capability profile. hint is the
// kind of an attached artifact, or empty. It returns ErrNoConfidentMatch if
// nothing qualifies.
func (c *Classifier) Classify(text string, hint models.ArtifactKind) (Result, error) {
	norm := Normalize(text)
	tokens := tokenize(norm)

	var qualified []Match
	for _, p := range c.reg.Profiles() {
		score, pos := c.scoreProfile(&p, norm, tokens)
		if hint != "" && p.AcceptsKind(hint) {
			score += c.hintBoost
		}
		if score > c.threshold {
			qualified = append(qualified, Match{
				CapabilityID: p.ID,
				Score:        score,
				Position:     pos,
			})
		}
	}

	if len(qualified) == 0 {
		return Result{}, ErrNoConfidentMatch
	}
	if len(qualified) == 1 {
		return Result{Matches: qualified}, nil
	}

	if c.isChained(norm, qualified) {
		// Left-to-right trigger position becomes pipeline order. The sort is
		// stable, so equal positions keep registry declaration order.
		sort.SliceStable(qualified, func(i, j int) bool {
			return qualified[i].Position < qualified[j].Position
		})
		return Result{Matches: qualified}, nil
	}

	// Ambiguous single-intent text: the best score wins, with ties within
	// epsilon broken by registry declaration order (the slice is already in
	// declaration order, and the sort is stable).
	sort.SliceStable(qualified, func(i, j int) bool {
		return qualified[i].Score > qualified[j].Score+c.epsilon
	})
	return Result{Matches: qualified[:1]}, nil
}

// scoreProfile computes the normalized score for one profile and the byte
// position of its earliest matching keyword in the normalized text.
// Multi-word phrases match as exact substrings regardless of tokenization;
// single tokens match whole tokens only.
func (c *Classifier) scoreProfile(p *registry.CapabilityProfile, norm string, tokens []token) (float64, int) {
	var sum float64
	pos := -1

	for _, kw := range p.Keywords {
		phrase := Normalize(kw.Phrase)
		if phrase == "" {
			continue
		}

		var at int
		if strings.ContainsRune(phrase, ' ') {
			at = strings.Index(norm, phrase)
		} else {
			at = tokenIndex(tokens, phrase)
		}
		if at < 0 {
			continue
		}

		// Each keyword contributes its weight once, however often it occurs.
		sum += kw.Weight
		if pos < 0 || at < pos {
			pos = at
		}
	}

	if sum == 0 {
		return 0, -1
	}
	return sum / math.Sqrt(float64(len(p.Keywords))), pos
}

// isChained reports whether the text describes a multi-step request: either
// it contains a sequencing connective, or the qualifying capabilities were
// triggered at distinct text positions.
func (c *Classifier) isChained(norm string, qualified []Match) bool {
	tokens := tokenize(norm)
	for _, conn := range connectives {
		if strings.ContainsRune(conn, ' ') {
			if strings.Contains(norm, conn) {
				return true
			}
		} else if tokenIndex(tokens, conn) >= 0 {
			return true
		}
	}

	seen := make(map[int]bool, len(qualified))
	for _, m := range qualified {
		if m.Position < 0 {
			continue
		}
		if seen[m.Position] {
			return false
		}
		seen[m.Position] = true
	}
	return len(seen) > 1
}

// token is a word in the normalized text with its byte offset.
type token struct {
	text string
	off  int
}

// Normalize lowercases text and strips punctuation, keeping hyphens so tool
// names like "yt-dlp" survive.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// tokenize splits normalized text into tokens with byte offsets.
func tokenize(norm string) []token {
	var out []token
	off := 0
	for off < len(norm) {
		for off < len(norm) && norm[off] == ' ' {
			off++
		}
		start := off
		for off < len(norm) && norm[off] != ' ' {
			off++
		}
		if off > start {
			out = append(out, token{text: norm[start:off], off: start})
		}
	}
	return out
}

// tokenIndex returns the byte offset of the first token equal to word, or -1.
func tokenIndex(tokens []token, word string) int {
	for _, t := range tokens {
		if t.text == word {
			return t.off
		}
	}
	return -1
}
