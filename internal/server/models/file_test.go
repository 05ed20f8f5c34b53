package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShareState_ZeroValueIsDisabled(t *testing.T) {
	var s ShareState
	require.False(t, s.Active())

	_, ok := s.Token()
	require.False(t, ok)
	_, ok = s.ExpiresAt()
	require.False(t, ok)
	require.False(t, s.Expired(time.Now()))
}

func TestShareState_Active(t *testing.T) {
	exp := time.Now().Add(24 * time.Hour)
	s := ShareActive("tok-123", exp)

	require.True(t, s.Active())

	token, ok := s.Token()
	require.True(t, ok)
	require.Equal(t, "tok-123", token)

	got, ok := s.ExpiresAt()
	require.True(t, ok)
	require.Equal(t, exp, got)
}

func TestShareState_Expired(t *testing.T) {
	now := time.Now()

	require.False(t, ShareActive("t", now.Add(time.Second)).Expired(now))
	require.True(t, ShareActive("t", now.Add(-time.Second)).Expired(now))
	require.False(t, ShareDisabled().Expired(now))
}
