// Package fingerprint reduces raw catalog SKU strings to the canonical
// hardware class they describe, so the same physical configuration can
// be recognized across the two catalog representations that expose it
// under different identifiers.
package fingerprint

import (
	"regexp"
	"strings"
)

// Fingerprint is the canonical (memory, storage) tuple. Two raw SKU
// strings are hardware-equivalent iff their fingerprints are equal.
type Fingerprint struct {
	Memory  string
	Storage string
}

// Model-series suffixes come first: the hardware-qualifier rules below
// assume the series noise is already gone. Order matters.
var seriesRules = []*regexp.Regexp{
	regexp.MustCompile(`-\d+skl[a-e]\d{2}(-v\d+)?`), // -24sklea01, -24sklea01-v1
	regexp.MustCompile(`-\d+sk\d+`),                 // -24sk502
	regexp.MustCompile(`-\d+rise\d*`),               // -24rise, -24rise012
	regexp.MustCompile(`-\d+sys\w*`),                // -24sys, -24sysgame01
	regexp.MustCompile(`-\d+risegame\d*`),           // -24risegame01
	regexp.MustCompile(`-\d+risestor`),              // -24risestor
	regexp.MustCompile(`-\d+skgame\d*`),             // -24skgame01
	regexp.MustCompile(`-\d+ska\d*`),                // -24ska01
	regexp.MustCompile(`-\d+skstor\d*`),             // -24skstor01
	regexp.MustCompile(`-\d+sysstor`),               // -24sysstor
	regexp.MustCompile(`game\d*`),                   // game01
	regexp.MustCompile(`stor\d*`),                   // stor
	regexp.MustCompile(`-ks\d+`),                    // -ks40
	regexp.MustCompile(`-rise`),
	regexp.MustCompile(`-\d+sysle\d+`), // -25sysle012
	regexp.MustCompile(`-\d+skb\d+`),   // -25skb01
	regexp.MustCompile(`-\d+skc\d+`),   // -25skc01
	regexp.MustCompile(`-\d+sk\d+b`),   // -24sk60b
	regexp.MustCompile(`-v\d+`),        // -v1
	regexp.MustCompile(`-[a-z]{3}$`),   // -gra, -sgp regional suffix
}

// Spec qualifiers that vary between catalogs without changing the
// hardware class: memory ECC/frequency, storage interface hint,
// trailing 4-5 digit frequency numbers.
var qualifierRules = []*regexp.Regexp{
	regexp.MustCompile(`-(no)?ecc-\d+`),
	regexp.MustCompile(`-(sas|sa|ssd|nvme)$`),
	regexp.MustCompile(`-\d{4,5}$`),
}

// Normalize maps a raw SKU string to its canonical class. It is total,
// deterministic and idempotent: unrecognized input comes back
// lower-cased and trimmed rather than causing an error, so matching
// degrades to "no match" instead of failing.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	for _, re := range seriesRules {
		s = re.ReplaceAllString(s, "")
	}
	for _, re := range qualifierRules {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

// New builds the fingerprint for a raw memory/storage code pair.
func New(memory, storage string) Fingerprint {
	return Fingerprint{Memory: Normalize(memory), Storage: Normalize(storage)}
}
