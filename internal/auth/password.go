package auth

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the most bcrypt will hash.
	MaxPasswordBytes = 72
	// similarity ratio at which a password counts as too close to a user
	// attribute.
	maxSimilarity = 0.7
)

//go:embed common_passwords.txt
var commonPasswordList string

var commonPasswords = func() map[string]struct{} {
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(commonPasswordList))
	for sc.Scan() {
		if p := strings.TrimSpace(sc.Text()); p != "" && !strings.HasPrefix(p, "#") {
			set[strings.ToLower(p)] = struct{}{}
		}
	}
	return set
}()

var nonWord = regexp.MustCompile(`\W+`)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword returns every policy message password violates, in a
// stable order. An empty result means the password is acceptable.
func ValidatePassword(password, username, email string) []string {
	if len(password) > MaxPasswordBytes {
		return []string{fmt.Sprintf("This password is too long. It must contain at most %d bytes.", MaxPasswordBytes)}
	}
	var msgs []string
	if attr, ok := similarAttribute(password, map[string]string{"username": username, "email address": email}); ok {
		msgs = append(msgs, fmt.Sprintf("The password is too similar to the %s.", attr))
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		msgs = append(msgs, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength))
	}
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		msgs = append(msgs, "This password is too common.")
	}
	if password != "" && isDigits(password) {
		msgs = append(msgs, "This password is entirely numeric.")
	}
	return msgs
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// similarAttribute checks the password against each attribute value and
// its word parts. Attributes are checked in a fixed order.
func similarAttribute(password string, attrs map[string]string) (string, bool) {
	pw := strings.ToLower(password)
	for _, name := range []string{"username", "email address"} {
		value := strings.ToLower(attrs[name])
		if value == "" {
			continue
		}
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if part == "" || exceedsLengthRatio(pw, part) {
				continue
			}
			if similarity(pw, part) >= maxSimilarity {
				return name, true
			}
		}
	}
	return "", false
}

// exceedsLengthRatio reports whether password is so much longer than value
// that the two cannot reach maxSimilarity, letting the comparison be skipped.
func exceedsLengthRatio(password, value string) bool {
	pwLen := utf8.RuneCountInString(password)
	valueLen := utf8.RuneCountInString(value)
	return pwLen >= 10*valueLen && float64(valueLen) < maxSimilarity/2*float64(pwLen)
}

// similarity is 2*M/T where M counts characters in matching blocks found by
// repeatedly taking the longest common substring, and T is the combined
// length.
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, n := longestCommon(a, b)
	if n == 0 {
		return 0
	}
	return n + matchingChars(a[:i], b[:j]) + matchingChars(a[i+n:], b[j+n:])
}

// longestCommon returns the start offsets and length of the leftmost
// longest common substring of a and b.
func longestCommon(a, b []rune) (int, int, int) {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	bestI, bestJ, best := 0, 0, 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
					bestI, bestJ = i-best, j-best
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, best
}
