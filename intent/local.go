package intent

import (
	"context"
	"errors"
	"strings"
)

var ErrNoMatch = errors.New("no flow matches the message")

// LocalRecognizer scores flows by how many of their id, name and tag words
// occur in the utterance. It never extracts inputs.
type LocalRecognizer struct{}

var _ Recognizer = LocalRecognizer{}

func NewLocalRecognizer() LocalRecognizer {
	return LocalRecognizer{}
}

func (LocalRecognizer) Recognize(ctx context.Context, req *Request) (*Result, error) {
	words := map[string]bool{}
	for _, w := range tokenize(req.Utterance) {
		words[w] = true
	}
	best, bestScore := "", 0
	for _, f := range req.Flows {
		score := 0
		seen := map[string]bool{}
		terms := append(tokenize(f.ID), tokenize(f.Name)...)
		for _, tag := range f.Tags {
			terms = append(terms, tokenize(tag)...)
		}
		for _, term := range terms {
			if len(term) < 3 || seen[term] {
				continue
			}
			seen[term] = true
			if words[term] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = f.ID, score
		}
	}
	if best == "" {
		return nil, ErrNoMatch
	}
	return &Result{Intent: best, Inputs: map[string]any{}, Confidence: 0.5}, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

type FailbackRecognizer struct {
	recognizers []Recognizer
}

var _ Recognizer = (*FailbackRecognizer)(nil)

func NewFailbackRecognizer(recognizers ...Recognizer) *FailbackRecognizer {
	return &FailbackRecognizer{recognizers: recognizers}
}

func (r *FailbackRecognizer) Recognize(ctx context.Context, req *Request) (*Result, error) {
	var lastErr error
	for _, rec := range r.recognizers {
		res, err := rec.Recognize(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrNoMatch
	}
	return nil, lastErr
}
