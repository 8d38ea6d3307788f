// Package extract implements ordered fallback extraction strategies over
// HTML snapshots. Strategies are pure functions of a parsed document, so
// site-structure coupling stays out of the browser-driving code and every
// chain is testable against fixture pages.
package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoStrategy is returned by a chain when no registered strategy applies
// to the document.
var ErrNoStrategy = errors.New("no applicable extraction strategy")

// Strategy inspects a document and, when applicable, extracts a value.
type Strategy[T any] interface {
	Name() string
	Applies(doc *goquery.Document) bool
	Extract(doc *goquery.Document) (T, error)
}

// Chain runs strategies in registration order; the first applicable one
// wins.
type Chain[T any] struct {
	strategies []Strategy[T]
}

// NewChain builds a chain from the given strategies.
func NewChain[T any](strategies ...Strategy[T]) *Chain[T] {
	return &Chain[T]{strategies: strategies}
}

// Run returns the extraction result and the name of the strategy that
// produced it.
func (c *Chain[T]) Run(doc *goquery.Document) (T, string, error) {
	var zero T
	for _, s := range c.strategies {
		if !s.Applies(doc) {
			continue
		}
		v, err := s.Extract(doc)
		if err != nil {
			return zero, s.Name(), err
		}
		return v, s.Name(), nil
	}
	return zero, "", ErrNoStrategy
}

// ParseDocument parses an HTML snapshot into a goquery document.
func ParseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

type funcStrategy[T any] struct {
	name    string
	applies func(*goquery.Document) bool
	extract func(*goquery.Document) (T, error)
}

func (f funcStrategy[T]) Name() string                        { return f.name }
func (f funcStrategy[T]) Applies(doc *goquery.Document) bool  { return f.applies(doc) }
func (f funcStrategy[T]) Extract(doc *goquery.Document) (T, error) {
	return f.extract(doc)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
