package entity

import (
	"strings"

	"github.com/joseph-ayodele/ocr-batch/constants"
)

// OutcomeKind tags an Outcome.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeNoText  OutcomeKind = "no_text"
	OutcomeError   OutcomeKind = "error"
)

// Outcome is the result of processing one unique image.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`
	Text string      `json:"text,omitempty"`
	// LowConfidence distinguishes the two no-text sentinels.
	LowConfidence bool   `json:"low_confidence,omitempty"`
	Message       string `json:"message,omitempty"`
}

func Success(text string) Outcome { return Outcome{Kind: OutcomeSuccess, Text: text} }

func NoText(lowConfidence bool) Outcome {
	return Outcome{Kind: OutcomeNoText, LowConfidence: lowConfidence}
}

func Failure(msg string) Outcome { return Outcome{Kind: OutcomeError, Message: msg} }

// Cacheable reports whether the outcome may be written to the shared cache.
// Errors are never cached so a later upload of the same bytes is retried.
func (o Outcome) Cacheable() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeNoText
}

// Render returns the string a client sees for this outcome.
func (o Outcome) Render() string {
	switch o.Kind {
	case OutcomeSuccess:
		return strings.TrimSpace(o.Text)
	case OutcomeNoText:
		if o.LowConfidence {
			return constants.NoTextLowConfidence
		}
		return constants.NoTextDetected
	default:
		return constants.OCRErrorPrefix + o.Message
	}
}

// ParseRendered is the inverse of Render for values read back from the cache
// or a response body.
func ParseRendered(s string) Outcome {
	switch {
	case s == constants.NoTextDetected:
		return NoText(false)
	case s == constants.NoTextLowConfidence:
		return NoText(true)
	case strings.HasPrefix(s, constants.OCRErrorPrefix):
		return Failure(strings.TrimPrefix(s, constants.OCRErrorPrefix))
	default:
		return Success(s)
	}
}

// ParseCached decodes a value read from the cache. Only cacheable outcomes
// are ever written, so anything other than a no-text sentinel is text, even
// when it starts with the error prefix.
func ParseCached(s string) Outcome {
	switch s {
	case constants.NoTextDetected:
		return NoText(false)
	case constants.NoTextLowConfidence:
		return NoText(true)
	default:
		return Success(s)
	}
}
