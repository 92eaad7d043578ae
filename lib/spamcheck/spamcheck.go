// Package spamcheck defines types shared by the classifier, the score caches and their callers.
package spamcheck

import (
	"crypto/sha256"
	"fmt"
)

// Scores is a pair of spam and ham scores computed for a message.
// Scores are not normalized probabilities, only their relative order is meaningful.
type Scores struct {
	Spam float64 `json:"spam_score"`
	Ham  float64 `json:"ham_score"`
}

// Neutral returns the identity pair for Multiply
func Neutral() Scores {
	return Scores{Spam: 1, Ham: 1}
}

// IsSpam returns true if spam score is strictly greater than ham score. Ties are ham.
func (s Scores) IsSpam() bool {
	return s.Spam > s.Ham
}

// Multiply returns pairwise product of two score pairs.
// It is commutative and associative, so the order of aggregation doesn't matter.
func (s Scores) Multiply(other Scores) Scores {
	return Scores{Spam: s.Spam * other.Spam, Ham: s.Ham * other.Ham}
}

func (s Scores) String() string {
	spamOrHam := "ham"
	if s.IsSpam() {
		spamOrHam = "spam"
	}
	return fmt.Sprintf("%s (spam: %g, ham: %g)", spamOrHam, s.Spam, s.Ham)
}

// Hash returns hex-encoded sha256 digest of a message, used as a cache key.
// Uppercase hex keeps keys compatible with previously persisted cache files.
func Hash(msg string) string {
	return fmt.Sprintf("%X", sha256.Sum256([]byte(msg)))
}

// Request is a request to check a message for spam.
type Request struct {
	Msg string `json:"msg"` // message to check
}

// Response is a result of spam check.
type Response struct {
	Msg       string  `json:"msg"`        // checked message
	Spam      bool    `json:"spam"`       // true if spam
	SpamScore float64 `json:"spam_score"` // spam score, relative to ham score only
	HamScore  float64 `json:"ham_score"`  // ham score, relative to spam score only
	Cached    bool    `json:"cached"`     // true if scores were taken from the cache
}

// NewResponse makes a Response for a message and its scores
func NewResponse(msg string, s Scores, cached bool) Response {
	return Response{Msg: msg, Spam: s.IsSpam(), SpamScore: s.Spam, HamScore: s.Ham, Cached: cached}
}

// Scores returns score pair of the response
func (r *Response) Scores() Scores {
	return Scores{Spam: r.SpamScore, Ham: r.HamScore}
}

func (r *Response) String() string {
	spamOrHam := "ham"
	if r.Spam {
		spamOrHam = "spam"
	}
	return fmt.Sprintf("msg:%q, %s, spam:%g, ham:%g, cached:%v", r.Msg, spamOrHam, r.SpamScore, r.HamScore, r.Cached)
}
