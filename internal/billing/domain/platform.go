package domain

import "fmt"

// Platform identifies the billing provider a record came from.
type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformMobile Platform = "mobile"
)

// IsValid reports whether p is a known platform.
func (p Platform) IsValid() bool {
	return p == PlatformWeb || p == PlatformMobile
}

func (p Platform) String() string { return string(p) }

// ParsePlatform converts a route or CLI name into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}
