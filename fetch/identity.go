package fetch

import "sync/atomic"

// Identity is one outbound header profile.
type Identity struct {
	UserAgent string
}

// sharedHeaders are sent with every identity.
var sharedHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Identities rotates over a fixed set of outbound identity profiles.
// The counter is process-wide and shared across concurrent runs; the
// rotation is advisory, so no stricter ordering than atomic increments
// is needed (two fetches reusing one profile is harmless).
type Identities struct {
	profiles []Identity
	next     atomic.Uint64
}

// defaultProfiles are the built-in desktop Chrome profiles.
var defaultProfiles = []Identity{
	{UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
	{UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
}

// NewIdentities builds a rotator over the given profiles. An empty profile
// set falls back to the built-in ones so rotation always has something to
// cycle over.
func NewIdentities(profiles []Identity) *Identities {
	if len(profiles) == 0 {
		profiles = defaultProfiles
	}
	return &Identities{profiles: profiles}
}

// DefaultIdentities returns a rotator over the built-in profiles.
func DefaultIdentities() *Identities {
	return NewIdentities(nil)
}

// Next returns the header set for the next identity in the rotation.
// The returned map is a fresh copy the caller may mutate.
func (s *Identities) Next() map[string]string {
	idx := s.next.Add(1) - 1
	profile := s.profiles[idx%uint64(len(s.profiles))]

	headers := make(map[string]string, len(sharedHeaders)+1)
	for k, v := range sharedHeaders {
		headers[k] = v
	}
	headers["User-Agent"] = profile.UserAgent
	return headers
}
