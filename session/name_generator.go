package session

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	repeatedHyphens = regexp.MustCompile(`-+`)
)

// SanitizeSessionName turns free text into a name ValidateSessionName
// accepts, or "" when nothing usable is left.
func SanitizeSessionName(s string) string {
	s = strings.Trim(s, `"' `)
	s = strings.Join(strings.Fields(s), "-")
	s = unsafeNameChars.ReplaceAllString(s, "")
	s = repeatedHyphens.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-_")
	if len(s) > MaxSessionNameLength {
		s = strings.TrimRight(s[:MaxSessionNameLength], "-_")
	}
	return s
}

var (
	nameAdjectives = []string{
		"brave", "calm", "clever", "eager", "focused", "gentle", "happy", "keen",
		"lucid", "nimble", "quiet", "sharp", "steady", "swift", "tidy", "witty",
	}
	nameSurnames = []string{
		"babbage", "carson", "curie", "dijkstra", "hopper", "knuth", "lamport", "liskov",
		"lovelace", "mccarthy", "noether", "pike", "ritchie", "shannon", "thompson", "turing",
	}
)

// GenerateSessionName returns an adjective_surname name that taken does not
// report as in use. After a few collisions a numeric suffix is appended.
func GenerateSessionName(r *rand.Rand, taken func(string) bool) string {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	pick := func() string {
		return nameAdjectives[r.IntN(len(nameAdjectives))] + "_" + nameSurnames[r.IntN(len(nameSurnames))]
	}
	name := pick()
	for i := 0; taken != nil && taken(name); i++ {
		name = pick()
		if i >= 8 {
			name += "_" + strconv.Itoa(r.IntN(1000))
		}
	}
	return name
}
