package models

import "time"

// UserFile describes an uploaded file. The content is stored encrypted in
// the blob store under BlobRef; WrappedKey is the per-file key encrypted
// under the server master key. A nil DirectoryID means the user's root.
//
// WrappedKey may be empty for legacy rows created before encryption was
// introduced; such files are stored in the clear.
type UserFile struct {
	ID          string
	UserID      string
	DirectoryID *string
	WrappedKey  []byte
	Filename    string
	UploadedAt  time.Time
	BlobRef     string
	Share       ShareState
}

// ShareState is the public-sharing status of a file: either disabled, or
// active with a token and expiry. The zero value is disabled. Keeping the
// three columns behind this type makes "token present iff active" hold by
// construction rather than by convention.
type ShareState struct {
	active    bool
	token     string
	expiresAt time.Time
}

// ShareDisabled returns the disabled state.
func ShareDisabled() ShareState {
	return ShareState{}
}

// ShareActive returns an active state carrying a token and its expiry.
func ShareActive(token string, expiresAt time.Time) ShareState {
	return ShareState{active: true, token: token, expiresAt: expiresAt}
}

// Active reports whether the file is currently shared.
func (s ShareState) Active() bool { return s.active }

// Token returns the share token; ok is false when sharing is disabled.
func (s ShareState) Token() (token string, ok bool) {
	if !s.active {
		return "", false
	}
	return s.token, true
}

// ExpiresAt returns the expiry of an active share; ok is false when
// sharing is disabled.
func (s ShareState) ExpiresAt() (t time.Time, ok bool) {
	if !s.active {
		return time.Time{}, false
	}
	return s.expiresAt, true
}

// Expired reports whether an active share has passed its expiry at the
// given instant. A disabled share is never considered expired.
func (s ShareState) Expired(now time.Time) bool {
	return s.active && now.After(s.expiresAt)
}
