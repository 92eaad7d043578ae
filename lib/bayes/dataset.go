package bayes

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"strings"

	"github.com/umputun/spam-bayes/lib/spamcheck"
)

// LoadResult is a result of loading a dataset
type LoadResult struct {
	HamSamples  int // number of ham lines trained
	SpamSamples int // number of spam lines trained
	Skipped     int // number of lines with unknown labels
}

// CreateModelFromDataset trains the classifier from a dataset and writes the resulting model to w.
// Each dataset line is "label<TAB>message", label is "ham" or "spam", other labels are skipped.
// A line without a tab, with an empty label or with an empty message aborts loading with
// ErrInvalidDatasetFormat and nothing is written. Lines trained before the failure stay in the table.
func (c *Classifier) CreateModelFromDataset(dataset io.Reader, w io.Writer) (LoadResult, error) {
	lr := LoadResult{}
	for line, err := range Lines(dataset) {
		if err != nil {
			return lr, err
		}

		label, msg, err := parseLine(line.Text)
		if err != nil {
			return lr, fmt.Errorf("line %d: %w", line.Num, err)
		}

		switch spamClass(label) {
		case ClassHam:
			c.TrainHam(msg)
			lr.HamSamples++
		case ClassSpam:
			c.TrainSpam(msg)
			lr.SpamSamples++
		default:
			lr.Skipped++
		}
	}

	if lr.Skipped > 0 {
		log.Printf("[DEBUG] skipped %d dataset lines with unknown labels", lr.Skipped)
	}

	if err := c.Save(w); err != nil {
		return lr, err
	}
	return lr, nil
}

// parseLine splits dataset line to label and message, both must be non-empty
func parseLine(line string) (label, msg string, err error) {
	label, msg, found := strings.Cut(line, "\t")
	if !found {
		return "", "", fmt.Errorf("%w: no tab separator", spamcheck.ErrInvalidDatasetFormat)
	}
	if label == "" || msg == "" {
		return "", "", fmt.Errorf("%w: empty label or message", spamcheck.ErrInvalidDatasetFormat)
	}
	return label, msg, nil
}

// Line is a single line of text input with its 1-based number
type Line struct {
	Num  int
	Text string
}

// Lines returns an iterator over lines of r without line terminators. Lines are not limited in size,
// "\r\n" endings are accepted and the last line may have no terminator.
// A read error is yielded once and ends the iteration.
func Lines(r io.Reader) iter.Seq2[Line, error] {
	return func(yield func(Line, error) bool) {
		br := bufio.NewReader(r)
		for num := 1; ; num++ {
			text, err := br.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				yield(Line{}, fmt.Errorf("%w: can't read line %d: %w", spamcheck.ErrIO, num, err))
				return
			}
			if text == "" && err != nil {
				return // eof, no trailing line
			}
			text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
			if !yield(Line{Num: num, Text: text}, nil) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
