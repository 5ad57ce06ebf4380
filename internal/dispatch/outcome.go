package dispatch

import "sort"

// Outcome is the result of one credential's call: the remote HTTP status,
// or one of the sentinels [MissingToken] and [TransportFailure].
type Outcome int

const (
	// MissingToken means the credential had no usable token and no call was made.
	MissingToken Outcome = 999

	// TransportFailure means the call was attempted but failed below HTTP
	// (timeout, connection error, unreadable response).
	TransportFailure Outcome = 998
)

// Sentinel reports whether o is one of the reserved sentinel codes.
func (o Outcome) Sentinel() bool {
	return o == MissingToken || o == TransportFailure
}

// Succeeded reports whether the remote service accepted the call.
func (o Outcome) Succeeded() bool {
	return !o.Sentinel() && o >= 200 && o < 300
}

// Tally aggregates the outcomes of one batch.
type Tally struct {
	Total            int         `json:"size"`
	Succeeded        int         `json:"succeeded"`
	MissingToken     int         `json:"missing_token"`
	TransportFailure int         `json:"transport_failure"`
	Rejected         int         `json:"rejected"`
	Codes            map[int]int `json:"codes,omitempty"`
}

// Summarize counts outcomes by category. Rejected covers every real HTTP
// status outside 2xx.
func Summarize(outcomes []Outcome) Tally {
	t := Tally{Total: len(outcomes)}
	if len(outcomes) == 0 {
		return t
	}

	t.Codes = make(map[int]int)
	for _, o := range outcomes {
		t.Codes[int(o)]++
		switch {
		case o == MissingToken:
			t.MissingToken++
		case o == TransportFailure:
			t.TransportFailure++
		case o.Succeeded():
			t.Succeeded++
		default:
			t.Rejected++
		}
	}
	return t
}

// SortedCodes returns the distinct codes of t in ascending order.
func (t Tally) SortedCodes() []int {
	codes := make([]int, 0, len(t.Codes))
	for c := range t.Codes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
