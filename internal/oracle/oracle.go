package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// #region errors

var (
	// ErrUnavailable covers transport failures, timeouts and empty replies.
	ErrUnavailable = errors.New("oracle unavailable")
	// ErrMalformedResponse means the reply could not be interpreted.
	ErrMalformedResponse = errors.New("oracle response malformed")
)

// #endregion

// #region types

// Purpose tags a query for caching, metrics and provenance.
type Purpose string

const (
	PurposeValidate    Purpose = "validate"
	PurposeExtract     Purpose = "extract"
	PurposeAcknowledge Purpose = "acknowledge"
)

// Query is one natural-language judgment request.
type Query struct {
	Instruction string // system role text
	Input       string // the learner's answer
	Temperature float32
	MaxTokens   int
	Purpose     Purpose
}

// Oracle answers natural-language questions about learner input.
type Oracle interface {
	Ask(ctx context.Context, q Query) (string, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, q Query) (string, error)

func (f Func) Ask(ctx context.Context, q Query) (string, error) { return f(ctx, q) }

// #endregion

// #region parse-yes-no

// ParseYesNo reads a verdict from a free-text reply. A leading yes/no token
// wins; otherwise exactly one of the two must appear somewhere in the reply.
func ParseYesNo(reply string) (bool, error) {
	tokens := strings.FieldsFunc(strings.ToLower(reply), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(tokens) == 0 {
		return false, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	switch tokens[0] {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}

	var sawYes, sawNo bool
	for _, tok := range tokens {
		switch tok {
		case "yes":
			sawYes = true
		case "no":
			sawNo = true
		}
	}
	switch {
	case sawYes && !sawNo:
		return true, nil
	case sawNo && !sawYes:
		return false, nil
	default:
		return false, fmt.Errorf("%w: no verdict in %q", ErrMalformedResponse, truncate(reply, 80))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// #endregion
