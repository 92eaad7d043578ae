// Package checker implements the scoring path: score cache lookup, lazy model load, scoring and cache store.
// Loaded models are kept in memory for a limited time and can be dropped on model file changes.
package checker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/spam-bayes/lib/bayes"
	"github.com/umputun/spam-bayes/lib/spamcheck"
)

//go:generate moq --out mocks/score_cache.go --pkg mocks --with-resets --skip-ensure . ScoreCache

// ScoreCache is a persisted store of computed scores, keyed by message
type ScoreCache interface {
	Get(msg string) (spamcheck.Scores, bool)
	Put(msg string, s spamcheck.Scores) error
	Clear() error
}

// Config defines checker parameters
type Config struct {
	ModelPath string        // path to the pre-trained model file
	Workers   int           // number of parallel workers for bulk checks, 0 means number of CPUs
	ModelTTL  time.Duration // how long the loaded model stays in memory, 0 means forever
}

// Checker scores messages against a pre-trained model, with a persisted score cache in front of it
type Checker struct {
	Config
	scores ScoreCache
	models cache.Cache[string, *bayes.Classifier]
	loadMu sync.Mutex // serializes model loading
}

// New makes a Checker for the given config and score cache
func New(scores ScoreCache, cfg Config) *Checker {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	models := cache.NewCache[string, *bayes.Classifier]().WithMaxKeys(1)
	if cfg.ModelTTL > 0 {
		models = models.WithTTL(cfg.ModelTTL)
	}
	return &Checker{Config: cfg, scores: scores, models: models}
}

// Check returns the verdict for a single message. Cached scores are returned as is,
// otherwise the message is scored with the model and the result is stored in the score cache.
func (c *Checker) Check(msg string) (spamcheck.Response, error) {
	if s, ok := c.scores.Get(msg); ok {
		log.Printf("[DEBUG] cache hit for %q, %v", msg, s)
		return spamcheck.NewResponse(msg, s, true), nil
	}

	model, err := c.model()
	if err != nil {
		return spamcheck.Response{}, err
	}

	s := model.Scores(msg)
	if err := c.scores.Put(msg, s); err != nil {
		return spamcheck.Response{}, fmt.Errorf("can't cache scores for %q: %w", msg, err)
	}
	return spamcheck.NewResponse(msg, s, false), nil
}

// CheckLines scores every line of r in parallel and returns the product of all line scores.
// The product starts from the neutral pair, so the result doesn't depend on the order lines are scored in.
// Cached scores are used when present, new ones are not stored. Lines are not limited in size.
func (c *Checker) CheckLines(ctx context.Context, r io.Reader) (spamcheck.Scores, error) {
	model, err := c.model()
	if err != nil {
		return spamcheck.Scores{}, err
	}

	var mu sync.Mutex
	res := spamcheck.Neutral()
	lines := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Workers)

	var readErr error
	for line, err := range bayes.Lines(r) {
		if err != nil {
			readErr = err
			break
		}
		if gctx.Err() != nil {
			break
		}
		lines++
		g.Go(func() error {
			s, ok := c.scores.Get(line.Text)
			if !ok {
				s = model.Scores(line.Text)
			}
			mu.Lock()
			res = res.Multiply(s)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return spamcheck.Scores{}, err
	}
	if readErr != nil {
		return spamcheck.Scores{}, fmt.Errorf("can't read lines: %w", readErr)
	}
	if err := ctx.Err(); err != nil {
		return spamcheck.Scores{}, fmt.Errorf("bulk check interrupted: %w", err)
	}
	log.Printf("[DEBUG] checked %d lines, %v", lines, res)
	return res, nil
}

// Invalidate drops the loaded model, the next check loads it from the file again
func (c *Checker) Invalidate() {
	c.models.Purge()
}

// model returns the in-memory model, loading it from ModelPath if needed
func (c *Checker) model() (*bayes.Classifier, error) {
	if m, ok := c.models.Get(c.ModelPath); ok {
		return m, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if m, ok := c.models.Get(c.ModelPath); ok {
		return m, nil // loaded by another caller while we waited
	}

	fh, err := os.Open(c.ModelPath) //nolint:gosec // path is controlled by the app
	if err != nil {
		return nil, fmt.Errorf("%w: can't open model: %w", spamcheck.ErrIO, err)
	}
	defer fh.Close()

	m, err := bayes.NewFromPreTrained(bufio.NewReader(fh))
	if err != nil {
		return nil, fmt.Errorf("can't load model from %s: %w", c.ModelPath, err)
	}
	ham, spam := m.Totals()
	log.Printf("[INFO] model loaded from %s, tokens: %d, ham: %d, spam: %d", c.ModelPath, m.Len(), ham, spam)
	c.models.Set(c.ModelPath, m, 0) // 0 means the cache ttl
	return m, nil
}
