// Package identity mints and checks the anonymous session ids that key a
// visitor's journey.
package identity

import (
	"crypto/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	sessionPrefix = "session_"
	suffixLen     = 9
	base36        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// NewSessionID returns an id of the form session_<unix ms>_<9 base-36 chars>.
// It is unique with overwhelming probability but is not a secret.
func NewSessionID() string {
	return newSessionIDAt(time.Now())
}

func newSessionIDAt(now time.Time) string {
	buf := make([]byte, suffixLen)
	if _, err := rand.Read(buf); err != nil {
		panic("identity: crypto/rand failed: " + err.Error())
	}
	for i := range buf {
		buf[i] = base36[int(buf[i])%len(base36)]
	}
	return sessionPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(buf)
}

// ValidSessionID reports whether id is acceptable as a session key: 1 to 128
// characters from letters, digits and ._:-
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// SanitizeSessionID trims id and returns it if valid, or "" otherwise.
func SanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if !ValidSessionID(id) {
		return ""
	}
	return id
}
