package types

import "fmt"

// Version identifies which blockchain backend an account lives on during the
// migration window.
type Version int

const (
	// KinVersion2 is the legacy backend.
	KinVersion2 Version = 2
	// KinVersion3 is the current backend.
	KinVersion3 Version = 3
)

func (v Version) String() string {
	switch v {
	case KinVersion2:
		return "kin2"
	case KinVersion3:
		return "kin3"
	}

	return fmt.Sprintf("unknown(%d)", int(v))
}

// ParseVersion converts a raw integer (as returned by a version query
// endpoint) into a Version.
func ParseVersion(raw int) (Version, error) {
	switch Version(raw) {
	case KinVersion2:
		return KinVersion2, nil
	case KinVersion3:
		return KinVersion3, nil
	}

	return 0, fmt.Errorf("unknown blockchain version %d", raw)
}
