package logparser

import (
	"regexp"
	"strings"
)

// Category classifies one program log line.
type Category int

// Log line categories. The numeric values are stable and persisted with traces.
const (
	CategoryOther   Category = 0
	CategoryStart   Category = 1
	CategorySuccess Category = 2
	CategoryFailed  Category = 3
	CategoryCPI     Category = 4
	CategoryMessage Category = 5
	CategoryData    Category = 6
	CategoryReturn  Category = 7
	CategoryError   Category = 8
)

var categoryNames = map[Category]string{
	CategoryOther:   "other",
	CategoryStart:   "start",
	CategorySuccess: "success",
	CategoryFailed:  "failed",
	CategoryCPI:     "cpi",
	CategoryMessage: "message",
	CategoryData:    "data",
	CategoryReturn:  "return",
	CategoryError:   "error",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// opens reports whether the category starts a new invocation.
func (c Category) opens() bool {
	return c == CategoryStart || c == CategoryCPI
}

// closes reports whether the category ends the current invocation.
func (c Category) closes() bool {
	return c == CategorySuccess || c == CategoryFailed
}

// Line is a classified log line. Content is the category specific payload, e.g. the
// program address for start lines or "<address>|<code>" for failures.
type Line struct {
	Category Category `json:"category"`
	Content  string   `json:"content"`
}

const (
	prefixLog         = "Program log: "
	prefixData        = "Program data: "
	prefixError       = "Program log: Error: "
	prefixAnchorError = "Program log: AnchorError "
	prefixPanic       = "Program log: panicked at"
)

var (
	invokePattern      = regexp.MustCompile(`^Program (.*) invoke \[(\d+)\]`)
	returnPattern      = regexp.MustCompile(`^Program return: (.*) (.*)`)
	successPattern     = regexp.MustCompile(`^Program (.*) success`)
	customErrorPattern = regexp.MustCompile(`Program (.*) failed: custom program error: (.*)`)
	incompletePattern  = regexp.MustCompile(`Program (.*) failed: Program failed to complete`)
	genericFailPattern = regexp.MustCompile(`^Program (\S+) failed: (.*)`)
)

// Classify categorizes a single runtime log line.
func Classify(message string) Line {
	l, _ := classify(message)
	return l
}

// classify also returns the runtime's failure reason for failures that carry no
// numeric code.
func classify(message string) (Line, string) {
	if m := invokePattern.FindStringSubmatch(message); m != nil {
		if m[2] == "1" {
			return Line{CategoryStart, m[1]}, ""
		}
		return Line{CategoryCPI, m[1]}, ""
	}

	if strings.HasPrefix(message, prefixLog) {
		switch {
		case strings.HasPrefix(message, prefixError):
			return Line{CategoryError, "Reason: " + message[len(prefixError):]}, ""
		case strings.HasPrefix(message, prefixAnchorError), strings.HasPrefix(message, prefixPanic):
			return Line{CategoryError, "Reason: " + message[len(prefixLog):]}, ""
		default:
			return Line{CategoryMessage, message[len(prefixLog):]}, ""
		}
	}

	if strings.HasPrefix(message, prefixData) {
		return Line{CategoryData, message[len(prefixData):]}, ""
	}
	if m := returnPattern.FindStringSubmatch(message); m != nil {
		return Line{CategoryReturn, m[2]}, ""
	}
	if m := successPattern.FindStringSubmatch(message); m != nil {
		return Line{CategorySuccess, m[1]}, ""
	}
	if m := customErrorPattern.FindStringSubmatch(message); m != nil {
		return Line{CategoryFailed, m[1] + "|" + m[2]}, ""
	}
	if m := incompletePattern.FindStringSubmatch(message); m != nil {
		return Line{CategoryFailed, m[1] + "|0x0"}, ""
	}
	// Builtin failures such as "insufficient funds" carry no custom code.
	if m := genericFailPattern.FindStringSubmatch(message); m != nil {
		return Line{CategoryFailed, m[1] + "|"}, m[2]
	}
	return Line{CategoryOther, message}, ""
}
