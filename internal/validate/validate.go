package validate

import (
	"regexp"
	"strings"

	"ecosniper/internal/domain"
)

var (
	rePlan = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,63}$`)
	reDC   = regexp.MustCompile(`^[a-z]{3}[a-z0-9]{0,3}$`)
)

// PlanCode validates a catalog plan code.
func PlanCode(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if !rePlan.MatchString(s) {
		return "", &domain.ValidationError{Field: "planCode", Reason: "must be a catalog plan code"}
	}
	return s, nil
}

// Datacenter validates a location code such as "gra" or "rbx8".
func Datacenter(s string) (string, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if !reDC.MatchString(s) {
		return "", &domain.ValidationError{Field: "datacenter", Reason: "must be a datacenter code"}
	}
	return s, nil
}

// Options validates hardware option codes, dropping empty entries.
func Options(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, o := range in {
		o = strings.TrimSpace(strings.ToLower(o))
		if o == "" {
			continue
		}
		if !rePlan.MatchString(o) {
			return nil, &domain.ValidationError{Field: "options", Reason: "invalid option code " + o}
		}
		out = append(out, o)
	}
	return out, nil
}

// RetryInterval clamps the retry interval to a sane window; zero picks
// the default of 30s.
func RetryInterval(n int) int {
	if n <= 0 {
		return 30
	}
	if n < 5 {
		return 5
	}
	if n > 3600 {
		return 3600
	}
	return n
}
