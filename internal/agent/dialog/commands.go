package dialog

import "strings"

// Command is an out-of-band instruction recognised independently of slot content.
type Command int

const (
	CommandNone Command = iota
	CommandReset
	CommandExit
)

func (c Command) String() string {
	switch c {
	case CommandReset:
		return "reset"
	case CommandExit:
		return "exit"
	default:
		return "none"
	}
}

var resetKeywords = []string{"new", "새로", "다시", "다른 조건"}

// Classify checks exit before reset.
func Classify(query string) Command {
	if IsExit(query) {
		return CommandExit
	}
	if IsReset(query) {
		return CommandReset
	}
	return CommandNone
}

// IsReset matches any reset keyword as a case-insensitive substring.
func IsReset(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range resetKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// IsExit matches "exit" exactly after trimming, ignoring case.
func IsExit(query string) bool {
	return strings.EqualFold(strings.TrimSpace(query), "exit")
}

// IsChange matches "change" as a case-insensitive substring.
func IsChange(query string) bool {
	return strings.Contains(strings.ToLower(query), "change")
}
