package match

import (
	"strings"

	"github.com/LibrePCB/librepcb-api-server/internal/model"
)

// lifecycleStatuses maps raw lifecycle strings reported by the stock source to
// model statuses. Keys known to map to nothing are listed so they are not
// reported as unknown.
var lifecycleStatuses = map[string]model.Status{
	"active":             model.StatusActive,
	"active-unconfirmed": model.StatusActive,
	"nrfnd":              model.StatusNRND,
	"eol":                model.StatusObsolete,
	"obsolete":           model.StatusObsolete,
	"discontinued":       model.StatusObsolete,
	"transferred":        model.StatusObsolete,
	"contact mfr":        "",
}

// LifecycleStatus maps a raw lifecycle string to a model status. known is false
// when the (non-empty) raw value is not in the mapping table.
func LifecycleStatus(raw string) (status model.Status, known bool) {
	key := strings.ToLower(raw)
	if key == "" {
		return "", true
	}
	status, known = lifecycleStatuses[key]
	return status, known
}

// Candidate is a product returned by an external source for a queried MPN.
type Candidate struct {
	Manufacturer string
	MPN          string
	Status       string
}

const (
	scoreActive = 200
	scoreNRND   = 100

	scoreMPNExact   = 20
	scoreMPNNoSpace = 10

	scoreMfrExact      = 4
	scoreMfrContains   = 3
	scoreMfrNoSpace    = 2
	scoreMfrFirstToken = 1
)

// Score rates how well c matches a query. mpnLower is the lowercased query MPN
// and mfrNormalized the query manufacturer passed through NormalizeManufacturer.
// A score of 0 rejects the candidate; both the MPN and the manufacturer must
// match for a positive score.
func Score(c Candidate, mpnLower, mfrNormalized string) int {
	score := 0

	switch status, _ := LifecycleStatus(c.Status); status {
	case model.StatusActive:
		score += scoreActive
	case model.StatusNRND:
		score += scoreNRND
	}

	mpn := strings.ToLower(c.MPN)
	switch {
	case mpn == mpnLower:
		score += scoreMPNExact
	case stripSpace(mpn) == stripSpace(mpnLower):
		score += scoreMPNNoSpace
	default:
		return 0
	}

	mfr := NormalizeManufacturer(c.Manufacturer)
	switch {
	case mfr == mfrNormalized:
		score += scoreMfrExact
	case strings.Contains(mfr, mfrNormalized):
		score += scoreMfrContains
	case strings.Contains(stripSpace(mfr), stripSpace(mfrNormalized)):
		score += scoreMfrNoSpace
	case strings.Contains(mfr, strings.Split(mfrNormalized, " ")[0]):
		score += scoreMfrFirstToken
	default:
		return 0
	}

	return score
}

// Best returns the index of the highest scoring candidate for the query. Ties
// keep the earliest candidate. ok is false when no candidate scores above 0.
func Best(cands []Candidate, q model.PartQuery) (idx int, score int, ok bool) {
	mpn := strings.ToLower(q.MPN)
	mfr := NormalizeManufacturer(q.Manufacturer)

	idx = -1
	for i, c := range cands {
		s := Score(c, mpn, mfr)
		if s > score {
			idx, score = i, s
		}
	}
	return idx, score, idx >= 0
}
