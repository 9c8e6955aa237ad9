package artifact

import "errors"

var errMissingConfidence = errors.New("missing confidence score")

// Resolve reports whether incoming should replace current.
//
// Baseline values always lose. Otherwise the higher confidence wins and an
// exact tie keeps the earlier completion. If either side has no confidence,
// the conflict cannot be ranked and an error is returned.
func Resolve(current, incoming Provenance) (bool, error) {
	if current.Baseline {
		return true, nil
	}
	if current.Confidence == nil || incoming.Confidence == nil {
		return false, errMissingConfidence
	}
	if *incoming.Confidence != *current.Confidence {
		return *incoming.Confidence > *current.Confidence, nil
	}
	return incoming.Sequence < current.Sequence, nil
}
