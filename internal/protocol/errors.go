package protocol

const (
	// Envelope validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrEmptyBody       = "E_NO_BODY"

	// Agent state.
	ErrRoundInactive = "E_ROUND_INACTIVE"
	ErrNoUtility     = "E_NO_UTILITY"

	// Collaborators.
	ErrClassifier = "E_CLASSIFIER"
	ErrRelay      = "E_RELAY"

	ErrBadRequest = "E_BAD_REQUEST"
	ErrNotFound   = "E_NOT_FOUND"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrEmptyBody:       {},
	ErrRoundInactive:   {},
	ErrNoUtility:       {},
	ErrClassifier:      {},
	ErrRelay:           {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
