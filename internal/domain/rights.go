// Package domain contains the core business entities for MediaHost.
// These are pure Go structs with no external dependencies, representing
// the fundamental concepts of the media-upload system.
package domain

// RightID is the stable integer identifier of a grantable right.
// IDs are declared explicitly and never derived from enumeration order;
// the bit position of a right in a RightSet is always its declared ID.
type RightID int

// Right represents a single grantable API permission.
type Right struct {
	// ID is the stable permission id. Bit ID of a RightSet mask
	// corresponds to this right.
	ID RightID

	// Name is the machine-readable right name used in API payloads.
	Name string

	// Descriptor is a human-readable description of what the right allows.
	Descriptor string

	// RequireOTP marks the right as requiring step-up OTP verification
	// in addition to the primary credential.
	RequireOTP bool
}

// The fixed table of grantable rights.
var (
	RightChangeUsername    = Right{ID: 1, Name: "change-username", Descriptor: "Change your username"}
	RightResetPassword     = Right{ID: 2, Name: "reset-password", Descriptor: "Reset your password", RequireOTP: true}
	RightGenerateAPIKey    = Right{ID: 3, Name: "generate-api-key", Descriptor: "Generate an API key"}
	RightGenerateSession   = Right{ID: 4, Name: "generate-session", Descriptor: "Generate a session"}
	RightExpireAPIKey      = Right{ID: 5, Name: "expire-api-key", Descriptor: "Delete an API key"}
	RightExpireSession     = Right{ID: 6, Name: "expire-session", Descriptor: "Expire a session"}
	RightListAPIKeys       = Right{ID: 7, Name: "list-api-keys", Descriptor: "List API keys"}
	RightListSessions      = Right{ID: 8, Name: "list-sessions", Descriptor: "List sessions"}
	RightUploadFile        = Right{ID: 9, Name: "upload-file", Descriptor: "Upload files"}
	RightDeleteFile        = Right{ID: 10, Name: "delete-file", Descriptor: "Delete files"}
	RightModifyFileOptions = Right{ID: 11, Name: "modify-file-options", Descriptor: "Modify file privacy/name"}
	RightViewPrivateContent = Right{ID: 12, Name: "view-private-content", Descriptor: "View private files"}
	RightQueryContent      = Right{ID: 13, Name: "query-content", Descriptor: "Query uploads"}
	RightDeleteAccount     = Right{ID: 14, Name: "delete-account", Descriptor: "Delete account", RequireOTP: true}
)

// allRights enumerates every known right. Order here is presentation only;
// encoding never depends on it.
var allRights = []Right{
	RightChangeUsername,
	RightResetPassword,
	RightGenerateAPIKey,
	RightGenerateSession,
	RightExpireAPIKey,
	RightExpireSession,
	RightListAPIKeys,
	RightListSessions,
	RightUploadFile,
	RightDeleteFile,
	RightModifyFileOptions,
	RightViewPrivateContent,
	RightQueryContent,
	RightDeleteAccount,
}

// MaxRightID is the highest declared right id. A RightSet is a 64-bit mask,
// so declared ids must stay below 64.
const MaxRightID RightID = 14

// AllRights returns the full table of known rights.
// The returned slice must not be mutated.
func AllRights() []Right {
	return allRights
}

// RightByID looks up a right by its stable id.
func RightByID(id RightID) (Right, bool) {
	for _, r := range allRights {
		if r.ID == id {
			return r, true
		}
	}
	return Right{}, false
}

// RightByName looks up a right by its machine-readable name.
func RightByName(name string) (Right, bool) {
	for _, r := range allRights {
		if r.Name == name {
			return r, true
		}
	}
	return Right{}, false
}

// RightSet is a set of rights encoded as a fixed-width bit mask where
// bit k corresponds to the right with id k. The zero value is the empty set.
type RightSet uint64

// NewRightSet builds a set from the given rights.
func NewRightSet(rights ...Right) RightSet {
	var s RightSet
	for _, r := range rights {
		s = s.With(r)
	}
	return s
}

// FullRightSet returns the set containing every known right.
func FullRightSet() RightSet {
	return NewRightSet(allRights...)
}

// With returns a copy of the set with the given right added.
func (s RightSet) With(r Right) RightSet {
	return s | RightSet(uint64(1)<<uint(r.ID))
}

// Without returns a copy of the set with the given right removed.
func (s RightSet) Without(r Right) RightSet {
	return s &^ RightSet(uint64(1) << uint(r.ID))
}

// Contains reports whether the set contains the given right.
func (s RightSet) Contains(r Right) bool {
	return s&RightSet(uint64(1)<<uint(r.ID)) != 0
}

// IsEmpty reports whether the set contains no rights.
func (s RightSet) IsEmpty() bool {
	return s == 0
}

// Rights returns the known rights present in the set.
func (s RightSet) Rights() []Right {
	result := make([]Right, 0, len(allRights))
	for _, r := range allRights {
		if s.Contains(r) {
			result = append(result, r)
		}
	}
	return result
}

// Encode returns the bit mask of the set: the sum of 1<<id over every
// known right present. Bits that do not correspond to a declared right
// are not representable and therefore never encoded.
func (s RightSet) Encode() int64 {
	var mask int64
	for _, r := range allRights {
		if s.Contains(r) {
			mask |= int64(1) << uint(r.ID)
		}
	}
	return mask
}

// DecodeRightSet inverts Encode by testing each known right's bit in the
// mask. Unknown bits are dropped, so Encode/DecodeRightSet form a lossless
// bijection over sets of declared rights.
func DecodeRightSet(mask int64) RightSet {
	var s RightSet
	for _, r := range allRights {
		if mask&(int64(1)<<uint(r.ID)) != 0 {
			s = s.With(r)
		}
	}
	return s
}
