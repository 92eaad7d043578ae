package bayes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/umputun/spam-bayes/lib/spamcheck"
)

// model is the persisted form of the token table
type model struct {
	TokenTable map[string]Counter `json:"token_table"`
}

// NewFromPreTrained makes a classifier from a model previously written by Save or CreateModelFromDataset.
// The input must hold exactly one model object, every token must have both counters >= 1.
func NewFromPreTrained(r io.Reader) (*Classifier, error) {
	var m model
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: can't decode model: %w", spamcheck.ErrSerialization, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("more than one json value")
		}
		return nil, fmt.Errorf("%w: trailing data after model: %w", spamcheck.ErrSerialization, err)
	}

	res := New()
	for token, counter := range m.TokenTable {
		if counter.Ham == 0 || counter.Spam == 0 {
			return nil, fmt.Errorf("%w: token %q has zero counter, ham: %d, spam: %d",
				spamcheck.ErrSerialization, token, counter.Ham, counter.Spam)
		}
		res.table[token] = counter
		res.hamTotal += counter.Ham
		res.spamTotal += counter.Spam
	}
	return res, nil
}

// Save writes the whole token table to w
func (c *Classifier) Save(w io.Writer) error {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if err := json.NewEncoder(w).Encode(model{TokenTable: c.table}); err != nil {
		return fmt.Errorf("%w: can't encode model: %w", spamcheck.ErrSerialization, err)
	}
	return nil
}
