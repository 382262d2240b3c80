package custody

import (
	"fmt"
	"sort"
)

var reservedClaims = map[string]struct{}{
	ClaimExpires:  {},
	ClaimIssuedAt: {},
	ClaimMode:     {},
}

func isReservedClaim(name string) bool {
	_, ok := reservedClaims[name]
	return ok
}

// guardClaims rejects payloads that try to set codec owned claims
func guardClaims(claims Claims) error {
	var found []string
	for k := range claims {
		if isReservedClaim(k) {
			found = append(found, k)
		}
	}

	if len(found) == 0 {
		return nil
	}

	sort.Strings(found)

	return withMessage(ErrReservedClaim, fmt.Sprintf("reserved claim set by caller: %v", found)).
		WithMetadata(map[string]any{"claims": found})
}
