package charlie

import "errors"

var (
	// ErrInvalidDistribution is returned when a probability
	// vector has negative or non-finite entries, or does not
	// sum to one.
	ErrInvalidDistribution = errors.New("invalid probability distribution")

	// ErrInvalidTemperature is returned for temperatures that
	// are not finite and positive.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrUnknownCharacter is returned when a character (or an
	// index) has no entry in the vocabulary.
	ErrUnknownCharacter = errors.New("unknown character")

	// ErrSeedTooShort is returned when a seed cannot fill the
	// context window.
	ErrSeedTooShort = errors.New("seed shorter than context window")

	// ErrEmptyVocab is returned when training or generating
	// against a vocabulary with no characters.
	ErrEmptyVocab = errors.New("empty vocabulary")
)
