package envelope

import "strconv"

// fingerprintCap bounds the fingerprint so map keys stay cheap even for
// pathological message bodies.
const fingerprintCap = 800

// Fingerprint returns the dedup key for an envelope: sender, body, status
// and a disambiguator (explicit id, else timestamp, else nothing). Two
// envelopes with equal fingerprints are the same logical message no matter
// which channel delivered them or how often.
func (e Envelope) Fingerprint() string {
	disambig := e.ID
	if disambig == "" && e.Timestamp != 0 {
		disambig = strconv.FormatInt(e.Timestamp, 10)
	}
	key := e.SenderName + "::" + e.Message + "::" + e.Status + "::" + disambig
	if len(key) > fingerprintCap {
		key = key[:fingerprintCap]
	}
	return key
}

// Dedup returns seq with duplicate envelopes removed, first occurrence wins,
// order preserved. It is a pure view transform: the stored sequence is never
// rewritten, so re-deriving the view always recovers from a retained
// duplicate.
func Dedup(seq []Envelope) []Envelope {
	seen := make(map[string]struct{}, len(seq))
	out := make([]Envelope, 0, len(seq))
	for _, e := range seq {
		fp := e.Fingerprint()
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, e)
	}
	return out
}
