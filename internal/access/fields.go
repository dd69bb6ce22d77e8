package access

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kidandcat/teamboard/internal/apperr"
	"github.com/kidandcat/teamboard/internal/db"
)

const (
	MaxTeamName     = 30
	MaxProjectName  = 30
	MaxTaskTitle    = 50
	MaxUsername     = 150
	dateLayout      = "2006-01-02"
	msgBlank        = "This field may not be blank."
	msgRequired     = "This field is required."
	msgDateFormat   = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	msgUsernameChar = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
)

var usernamePattern = regexp.MustCompile(`^[\pL\pN.@+\-_]+$`)

func maxLen(field, value string, n int) error {
	if utf8.RuneCountInString(value) > n {
		return apperr.Validation(field, fmt.Sprintf("Ensure this field has no more than %d characters.", n))
	}
	return nil
}

func notBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.Validation(field, msgBlank)
	}
	return nil
}

func TeamName(name string) error {
	if err := notBlank("name", name); err != nil {
		return err
	}
	return maxLen("name", name, MaxTeamName)
}

func ProjectName(name string) error {
	if err := notBlank("name", name); err != nil {
		return err
	}
	return maxLen("name", name, MaxProjectName)
}

func TaskTitle(title string) error {
	if err := notBlank("title", title); err != nil {
		return err
	}
	return maxLen("title", title, MaxTaskTitle)
}

func TaskDescription(desc string) error {
	return notBlank("description", desc)
}

func CommentContent(content string) error {
	return notBlank("content", content)
}

func Status(s string) error {
	switch s {
	case db.StatusTodo, db.StatusDoing, db.StatusDone:
		return nil
	}
	return apperr.Validation("status", fmt.Sprintf("%q is not a valid choice.", s))
}

func Priority(p int) error {
	switch p {
	case db.PriorityHigh, db.PriorityMedium, db.PriorityLow:
		return nil
	}
	return apperr.Validation("priority", fmt.Sprintf("\"%d\" is not a valid choice.", p))
}

func Username(username string) error {
	if err := notBlank("username", username); err != nil {
		return err
	}
	if err := maxLen("username", username, MaxUsername); err != nil {
		return err
	}
	if !usernamePattern.MatchString(username) {
		return apperr.Validation("username", msgUsernameChar)
	}
	return nil
}

// Required reports a missing field on create.
func Required(field string) error {
	return apperr.Validation(field, msgRequired)
}

// Date checks that value is a YYYY-MM-DD calendar date.
func Date(field, value string) error {
	if _, err := time.Parse(dateLayout, value); err != nil {
		return apperr.Validation(field, msgDateFormat)
	}
	return nil
}

// Today formats now as the calendar date used for due-date checks.
func Today(now time.Time) string {
	return now.Local().Format(dateLayout)
}

func dateBefore(a, b string) bool {
	ta, errA := time.Parse(dateLayout, a)
	tb, errB := time.Parse(dateLayout, b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}
