// Package bayes implements a word-frequency spam classifier. The model is a table of tokens,
// each with a pair of ham and spam counters, trained from labeled messages and persisted as JSON.
package bayes

import (
	"sync"

	"github.com/umputun/spam-bayes/lib/spamcheck"
)

// spamClass is alias of string, representing class of a message
type spamClass string

// enum of message classes, also used as dataset labels
const (
	ClassHam  spamClass = "ham"
	ClassSpam spamClass = "spam"
)

// unknownRating is used for both classes when a token is not in the table
const unknownRating = 0.5

// Counter keeps how many times a token was seen in ham and spam messages.
// Counters start from 2 for the class the token was first seen in and from 1 for the other one,
// so a live entry never has a zero counter.
type Counter struct {
	Ham  uint64 `json:"ham"`
	Spam uint64 `json:"spam"`
}

// Classifier owns the token frequency table and scores messages against it, thread-safe.
// Totals over the whole table are maintained on every training call instead of being summed for each score.
type Classifier struct {
	table     map[string]Counter
	hamTotal  uint64
	spamTotal uint64
	lock      sync.RWMutex
}

// rating is a pair of per-token ratios
type rating struct {
	ham  float64
	spam float64
}

// New makes an empty classifier
func New() *Classifier {
	return &Classifier{table: make(map[string]Counter)}
}

// TrainHam adds all tokens of the message to the table as ham. Not idempotent, counts accumulate.
func (c *Classifier) TrainHam(msg string) {
	c.learn(ClassHam, Tokenize(msg)...)
}

// TrainSpam adds all tokens of the message to the table as spam. Not idempotent, counts accumulate.
func (c *Classifier) TrainSpam(msg string) {
	c.learn(ClassSpam, Tokenize(msg)...)
}

// learn updates the table with tokens of the given class. Every occurrence counts,
// so a token repeated in a message is learned as many times as it appears.
func (c *Classifier) learn(class spamClass, tokens ...string) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, token := range tokens {
		counter, exist := c.table[token]
		switch {
		case !exist && class == ClassHam:
			counter = Counter{Ham: 2, Spam: 1}
			c.hamTotal += 2
			c.spamTotal++
		case !exist && class == ClassSpam:
			counter = Counter{Ham: 1, Spam: 2}
			c.hamTotal++
			c.spamTotal += 2
		case class == ClassHam:
			counter.Ham++
			c.hamTotal++
		default:
			counter.Spam++
			c.spamTotal++
		}
		c.table[token] = counter
	}
}

// Scores returns spam and ham scores for a message. Each score is the product of per-token ratios
// plus the class prior. Known tokens contribute count/class-total, unknown tokens contribute 0.5.
// An empty table has no information and scores (0, 0) for both classes.
func (c *Classifier) Scores(msg string) spamcheck.Scores {
	tokens := Tokenize(msg)

	c.lock.RLock()
	defer c.lock.RUnlock()

	if len(c.table) == 0 || c.hamTotal+c.spamTotal == 0 {
		return spamcheck.Scores{}
	}

	productHam, productSpam := 1.0, 1.0
	for _, r := range c.rate(tokens...) {
		productHam *= r.ham
		productSpam *= r.spam
	}

	total := float64(c.hamTotal + c.spamTotal)
	spamPrior := float64(c.spamTotal) / total
	hamPrior := float64(c.hamTotal) / total

	return spamcheck.Scores{Spam: productSpam + spamPrior, Ham: productHam + hamPrior}
}

// rate makes a rating for every token, caller must hold the lock
func (c *Classifier) rate(tokens ...string) []rating {
	res := make([]rating, 0, len(tokens))
	for _, token := range tokens {
		counter, ok := c.table[token]
		if !ok {
			res = append(res, rating{ham: unknownRating, spam: unknownRating})
			continue
		}
		res = append(res, rating{
			ham:  float64(counter.Ham) / float64(c.hamTotal),
			spam: float64(counter.Spam) / float64(c.spamTotal),
		})
	}
	return res
}

// Counter returns counters for a token and true if the token is known
func (c *Classifier) Counter(token string) (Counter, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	counter, ok := c.table[token]
	return counter, ok
}

// Len returns number of tokens in the table
func (c *Classifier) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return len(c.table)
}

// Totals returns ham and spam counters summed over all tokens
func (c *Classifier) Totals() (ham, spam uint64) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.hamTotal, c.spamTotal
}
