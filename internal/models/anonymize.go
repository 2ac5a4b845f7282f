package models

import (
	"github.com/google/uuid"
)

// anonNamespace salts the derived tokens so they cannot be recomputed from a
// bare player id by anyone who does not run this code.
var anonNamespace = uuid.MustParse("8f9d2c1e-4b3a-4f6d-9c0e-5a7b1d2e3f40")

// Anonymize maps a player id to an opaque token that is stable per id and not
// reversible. A viewer always sees their own id untouched.
func Anonymize(id, viewerID string) string {
	if id == "" || id == viewerID {
		return id
	}
	return uuid.NewSHA1(anonNamespace, []byte(id)).String()
}
