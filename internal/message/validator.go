package message

import (
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MaxContentLength bounds message content, counted in runes.
const MaxContentLength = 1000

var validate = validator.New()

// coreFields holds the required-field and length rules checked by the
// struct validator; the pattern rules below don't map to tags.
type coreFields struct {
	Type      Type      `validate:"required"`
	Sender    string    `validate:"required"`
	Content   string    `validate:"required,max=1000"`
	Timestamp time.Time `validate:"required"`
}

var (
	usernameRE = regexp.MustCompile(`^\w{3,20}$`)

	// Script tags, javascript: URLs, and inline event-handler attributes.
	scriptRE = regexp.MustCompile(`(?is)<script.*?>|<.*?javascript:.*?>|<.*?\s+on\w+\s*=.*?>`)
)

// sanitizer escapes the characters the script patterns don't already reject.
// Single pass, so replacement output is never re-scanned within one call.
var sanitizer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// ValidUsername reports whether a username matches the accepted pattern
// (word characters, length 3-20).
func ValidUsername(username string) bool {
	return usernameRE.MatchString(username)
}

// ContainsScript reports whether content matches a known script-injection
// pattern.
func ContainsScript(content string) bool {
	return scriptRE.MatchString(content)
}

// Valid checks every inbound-message rule: required fields, content length,
// sender username format (skipped for system messages), and script patterns
// in the content.
func Valid(m Message) bool {
	if err := validate.Struct(coreFields{
		Type:      m.Type,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}); err != nil {
		return false
	}

	switch m.Type {
	case TypeText, TypeImage, TypeFile, TypeSystemNotice,
		TypeUserJoin, TypeUserLeave, TypeTyping, TypeReadReceipt:
	default:
		return false
	}

	if !m.IsSystem() && !ValidUsername(m.Sender) {
		return false
	}

	return !ContainsScript(m.Content)
}

// Sanitize escapes < > " ' / to their HTML-entity equivalents. Ampersands
// pass through, so entities already present in the input are left alone.
// Callers run it exactly once, on content fresh out of Valid.
func Sanitize(content string) string {
	return sanitizer.Replace(content)
}

// ValidateAndSanitize is the single entry gate for inbound payloads: it
// returns the message with sanitized content, or ErrInvalid.
func ValidateAndSanitize(m Message) (Message, error) {
	if !Valid(m) {
		return Message{}, ErrInvalid
	}
	m.Content = Sanitize(m.Content)
	return m, nil
}
