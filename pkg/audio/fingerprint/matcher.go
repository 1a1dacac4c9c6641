package fingerprint

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/samjhill/intro-tamer/logging"
	"github.com/samjhill/intro-tamer/pkg/audio/spectral"
)

// Match is a successful temporal alignment of a reference against a
// candidate episode.
type Match struct {
	Start            float64 `json:"start"` // seconds
	End              float64 `json:"end"`   // seconds
	Score            float64 `json:"score"` // [0, 1]
	BestOffsetFrames int     `json:"best_offset_frames"`
}

// NoMatchError reports that the best alignment scored below the
// acceptance threshold. Non-fatal for analyze and batch flows.
type NoMatchError struct {
	BestScore float64
	Threshold float64
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no match: best score %.3f below threshold %.3f", e.BestScore, e.Threshold)
}

// MatcherParams tunes the two-pass offset search
type MatcherParams struct {
	Stride   int     `json:"stride"`    // coarse pass evaluates every stride-th offset (default: 25)
	TopK     int     `json:"top_k"`     // coarse candidates kept for refinement (default: 8)
	MinScore float64 `json:"min_score"` // acceptance threshold after [0,1] mapping (default: 0.55)
}

// DefaultMatcherParams returns the standard search configuration
func DefaultMatcherParams() MatcherParams {
	return MatcherParams{
		Stride:   25,
		TopK:     8,
		MinScore: 0.55,
	}
}

// Matcher locates the best temporal alignment of a reference fingerprint
// inside a candidate feature matrix. Stateless apart from configuration;
// safe for concurrent use.
type Matcher struct {
	params MatcherParams
	logger logging.Logger
}

// NewMatcher creates a matcher with the given search parameters
func NewMatcher(params MatcherParams) *Matcher {
	if params.Stride <= 0 {
		params.Stride = 25
	}
	if params.TopK <= 0 {
		params.TopK = 8
	}

	return &Matcher{
		params: params,
		logger: logging.WithFields(logging.Fields{"component": "matcher"}),
	}
}

type scoredOffset struct {
	offset int
	score  float64
}

// Match searches for the reference inside the candidate features. The
// similarity at offset k is the mean cosine similarity of aligned frame
// pairs, mapped from [-1,1] to [0,1]. Search is two-pass: a strided coarse
// sweep keeps the top-K offsets, then every offset within one stride of
// each survivor is evaluated exactly. Ties prefer the earliest offset.
func (m *Matcher) Match(candidate *spectral.FeatureMatrix, ref *Reference) (*Match, error) {
	numRef := ref.NumFrames()
	if numRef == 0 {
		return nil, ErrEmpty
	}

	numCandidate := candidate.NumFrames()
	if numCandidate < numRef {
		return nil, &NoMatchError{BestScore: 0, Threshold: m.params.MinScore}
	}

	refRows := ref.features64()
	candRows := candidate.Rows()

	refNorms := rowNorms(refRows)
	candNorms := rowNorms(candRows)

	maxOffset := numCandidate - numRef

	score := func(k int) float64 {
		sum := 0.0
		for i, refRow := range refRows {
			sum += cosine(refRow, refNorms[i], candRows[k+i], candNorms[k+i])
		}
		return sum / float64(numRef)
	}

	// Coarse pass: strided sweep keeping the best TopK offsets
	coarse := make([]scoredOffset, 0, m.params.TopK)
	for k := 0; k <= maxOffset; k += m.params.Stride {
		insertTopK(&coarse, scoredOffset{offset: k, score: score(k)}, m.params.TopK)
	}

	// Refine pass: exact sweep around each coarse survivor. Strictly
	// greater comparisons with ascending offsets keep the earliest winner
	// on ties.
	best := scoredOffset{offset: -1, score: math.Inf(-1)}
	seen := make(map[int]bool)

	for _, c := range coarse {
		lo := max(c.offset-m.params.Stride, 0)
		hi := min(c.offset+m.params.Stride, maxOffset)

		for k := lo; k <= hi; k++ {
			if seen[k] {
				continue
			}
			seen[k] = true

			s := score(k)
			if s > best.score || (s == best.score && k < best.offset) {
				best = scoredOffset{offset: k, score: s}
			}
		}
	}

	hopSeconds := ref.HopSeconds()
	mapped := (best.score + 1.0) / 2.0

	m.logger.Debug("Match search completed", logging.Fields{
		"candidate_frames": numCandidate,
		"reference_frames": numRef,
		"best_offset":      best.offset,
		"score":            mapped,
		"coarse_stride":    m.params.Stride,
	})

	if mapped < m.params.MinScore {
		return nil, &NoMatchError{BestScore: mapped, Threshold: m.params.MinScore}
	}

	start := float64(best.offset) * hopSeconds
	return &Match{
		Start:            start,
		End:              start + ref.Duration(),
		Score:            mapped,
		BestOffsetFrames: best.offset,
	}, nil
}

// insertTopK keeps candidates sorted by descending score, earliest offset
// first on equal scores, truncated to k entries.
func insertTopK(list *[]scoredOffset, item scoredOffset, k int) {
	pos := len(*list)
	for pos > 0 {
		prev := (*list)[pos-1]
		if prev.score > item.score || (prev.score == item.score && prev.offset < item.offset) {
			break
		}
		pos--
	}

	*list = append(*list, scoredOffset{})
	copy((*list)[pos+1:], (*list)[pos:])
	(*list)[pos] = item

	if len(*list) > k {
		*list = (*list)[:k]
	}
}

func rowNorms(rows [][]float64) []float64 {
	norms := make([]float64, len(rows))
	for i, row := range rows {
		norms[i] = floats.Norm(row, 2)
	}
	return norms
}

// cosine computes the cosine similarity of two rows with precomputed
// norms. Zero-norm rows (silence against silence) count as identical.
func cosine(a []float64, normA float64, b []float64, normB float64) float64 {
	if normA == 0 && normB == 0 {
		return 1.0
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return floats.Dot(a, b) / (normA * normB)
}
