// Package lib provides a naive bayes spam classifier. The primary type is Classifier, which learns
// per-token ham and spam counts and scores messages against them.
//
// A Classifier is created empty with New and trained with TrainHam and TrainSpam, or created from
// a dataset with CreateModelFromDataset, or loaded from a saved model with NewFromPreTrained.
// The dataset is a text stream with one labeled message per line, "ham<TAB>message" or "spam<TAB>message".
// Lines with other labels are skipped, a line without a tab separator fails the whole dataset.
//
// Scores returns a pair of scores for a message, the message is spam if the spam score is greater
// than the ham score. Each score is the product of per-token ratios plus the class prior, tokens
// never seen in training contribute 0.5 to both products.
//
// ScoreCache keeps computed scores in a json file keyed by the message hash, so the same message
// is scored once. Put writes the whole cache through to the file, Clear removes the file.
//
// All types are thread-safe and can be used concurrently.
package lib

import (
	"github.com/umputun/spam-bayes/lib/bayes"
	"github.com/umputun/spam-bayes/lib/scorecache"
	"github.com/umputun/spam-bayes/lib/spamcheck"
)

// Classifier is a naive bayes spam classifier
type Classifier = bayes.Classifier

// ScoreCache is a json file cache of computed scores
type ScoreCache = scorecache.Cache

// Scores is a pair of spam and ham scores
type Scores = spamcheck.Scores

// error kinds, use errors.Is to check
var (
	ErrIO                   = spamcheck.ErrIO
	ErrSerialization        = spamcheck.ErrSerialization
	ErrInvalidDatasetFormat = spamcheck.ErrInvalidDatasetFormat
)

// New makes an empty classifier
func New() *Classifier { return bayes.New() }

// OpenScoreCache loads the cache file, a missing file makes an empty cache
func OpenScoreCache(path string) (*ScoreCache, error) { return scorecache.Open(path) }
