package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireErrorWith asserts the error exists and contains the fragment
func RequireErrorWith(t *testing.T, err error, fragment string) {
	t.Helper()
	require.Error(t, err)
	require.Contains(t, err.Error(), fragment)
}

// RequirePanicWith asserts f panics with a message containing the fragment
func RequirePanicWith(t *testing.T, f func(), fragment string) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		var msg string
		switch r := r.(type) {
		case error:
			msg = r.Error()
		case string:
			msg = r
		}
		require.True(t, strings.Contains(msg, fragment), "panic message '%s' does not contain '%s'", msg, fragment)
	}()
	f()
}
