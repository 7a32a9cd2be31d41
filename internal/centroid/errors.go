package centroid

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a centroiding failure.
type Kind int

const (
	// KindEdge means the smoothing/binning window extends past the image.
	KindEdge Kind = iota + 1

	// KindNoSecondDerivative means the curvature is exactly zero on an axis.
	KindNoSecondDerivative

	// KindAlmostNoSecondDerivative means the first-guess offset is 10 pixels
	// or more from the centre, where the quadratic model is meaningless.
	KindAlmostNoSecondDerivative

	// KindNotAtMaximum means the curvature sign does not match the source
	// polarity.
	KindNotAtMaximum

	// KindFatalConfiguration means the measurement cannot run at all (no PSF,
	// invalid configuration). Retrying with another centre will not help.
	KindFatalConfiguration
)

var kindNames = map[Kind]string{
	KindEdge:                     "edge",
	KindNoSecondDerivative:       "no_second_derivative",
	KindAlmostNoSecondDerivative: "almost_no_second_derivative",
	KindNotAtMaximum:             "not_at_maximum",
	KindFatalConfiguration:       "fatal_configuration",
}

var kindDocs = map[Kind]string{
	KindEdge:                     "object too close to edge",
	KindNoSecondDerivative:       "vanishing second derivative",
	KindAlmostNoSecondDerivative: "almost vanishing second derivative",
	KindNotAtMaximum:             "object is not at a maximum",
	KindFatalConfiguration:       "fatal configuration error",
}

// String returns the snake_case name used in tool results.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a typed centroiding failure. Values holds the numbers that
// triggered it (curvatures, slopes) for diagnostics.
type Error struct {
	Kind   Kind
	Detail string
	Values []float64
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(kindDocs[e.Kind])
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if len(e.Values) > 0 {
		b.WriteString(" [")
		for i, v := range e.Values {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%g", v)
		}
		b.WriteString("]")
	}
	return b.String()
}

// Is matches any *Error of the same Kind, so the sentinels below work with
// errors.Is regardless of detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrEdge                     = &Error{Kind: KindEdge}
	ErrNoSecondDerivative       = &Error{Kind: KindNoSecondDerivative}
	ErrAlmostNoSecondDerivative = &Error{Kind: KindAlmostNoSecondDerivative}
	ErrNotAtMaximum             = &Error{Kind: KindNotAtMaximum}
	ErrFatalConfiguration       = &Error{Kind: KindFatalConfiguration}
)

func newError(kind Kind, detail string, values ...float64) *Error {
	return &Error{Kind: kind, Detail: detail, Values: values}
}

// KindOf returns the Kind of err, or 0 if err is not a centroiding error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsFatal reports whether err should abort processing of the source entirely
// rather than be recorded as an ordinary measurement failure.
func IsFatal(err error) bool {
	return KindOf(err) == KindFatalConfiguration
}
