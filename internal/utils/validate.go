package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/filmoteca/filmoteca/internal/model"
)

// Field bounds shared by create and partial-update validation.
const (
	MinYear        = 1888 // first motion picture
	MaxDuration    = 600  // minutes
	MaxSynopsisLen = 1000
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether the address has a plausible mailbox@domain
// shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateUserName checks a display name: trimmed, 2-100 characters, letters,
// digits and spaces only. Returns the normalized name.
func ValidateUserName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := len([]rune(name)); n < 2 || n > 100 {
		return "", fmt.Errorf("name must be between 2 and 100 characters")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return "", fmt.Errorf("name may only contain letters, digits and spaces")
		}
	}
	return name, nil
}

// ValidateTitle checks a movie title: non-empty after trimming, at most 200
// characters. Returns the normalized title.
func ValidateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("title must not be empty")
	}
	if len([]rune(title)) > 200 {
		return "", fmt.Errorf("title must be at most 200 characters")
	}
	return title, nil
}

// ValidateDirector checks a director name: non-empty, at most 150
// characters, letters/digits/spaces plus the punctuation that occurs in
// real names (.,'-). Returns the normalized name.
func ValidateDirector(director string) (string, error) {
	director = strings.TrimSpace(director)
	if director == "" {
		return "", fmt.Errorf("director must not be empty")
	}
	if len([]rune(director)) > 150 {
		return "", fmt.Errorf("director must be at most 150 characters")
	}
	for _, r := range director {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && !strings.ContainsRune(".,'-", r) {
			return "", fmt.Errorf("director contains invalid characters")
		}
	}
	return director, nil
}

// ValidateYear checks the release year: 1888 up to the current year.
func ValidateYear(year int) error {
	if current := time.Now().UTC().Year(); year < MinYear || year > current {
		return fmt.Errorf("year must be between %d and %d", MinYear, current)
	}
	return nil
}

// ValidateDuration checks the running time: 1 to 600 minutes.
func ValidateDuration(minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("duration must be greater than 0 minutes")
	}
	if minutes > MaxDuration {
		return fmt.Errorf("duration must be at most %d minutes", MaxDuration)
	}
	return nil
}

// ValidateClassification checks the age rating against the fixed allow-list
// and returns the canonical upper-case form.
func ValidateClassification(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if !model.ValidClassification(c) {
		return "", fmt.Errorf("classification must be one of: %s", strings.Join(model.Classifications, ", "))
	}
	return c, nil
}

// ValidateSynopsis checks the optional synopsis length.
func ValidateSynopsis(s string) error {
	if len([]rune(s)) > MaxSynopsisLen {
		return fmt.Errorf("synopsis must be at most %d characters", MaxSynopsisLen)
	}
	return nil
}
