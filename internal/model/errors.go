package model

import "github.com/rotisserie/eris"

// Per-question conditions. These are recorded on the output record and
// never abort a run; only infrastructure failures (store unreachable,
// migration failure) propagate as run errors.
var (
	// ErrMissingAnswerLine signals that no answer label was found in a
	// question block; segmentation proceeds over the full body.
	ErrMissingAnswerLine = eris.New("answer line not found")

	// ErrEmptyAnswer signals that normalization left no primary phrase.
	// Callers substitute AnswerNeedsReview rather than fail.
	ErrEmptyAnswer = eris.New("empty answer after normalization")

	// ErrResolutionTimeout signals that remote resolution exhausted its
	// deadline; the phrase is negatively cached.
	ErrResolutionTimeout = eris.New("resolution timed out")

	// ErrCacheCorrupt signals a malformed persisted cache row. The row
	// is skipped and the phrase re-resolved; the run continues.
	ErrCacheCorrupt = eris.New("corrupt cache entry")
)
