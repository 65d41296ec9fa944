package auth

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDropPrivilegesUnknownAccountFails(t *testing.T) {
	err := dropPrivileges("no-such-rap-test-account")
	require.Error(t, err)
}

func TestReinstallEnvReplacesEnvironmentEntirely(t *testing.T) {
	t.Setenv("RAP_TEST_STALE", "should-be-gone")

	reinstallEnv([]string{"RAP_TEST_ONE=a", "RAP_TEST_TWO=b", "malformed-no-equals"})

	assert.Equal(t, "a", os.Getenv("RAP_TEST_ONE"))
	assert.Equal(t, "b", os.Getenv("RAP_TEST_TWO"))
	assert.Equal(t, "", os.Getenv("RAP_TEST_STALE"))
}

func TestLoginUnknownServiceFails(t *testing.T) {
	a := New("no-such-rap-test-pam-service", nil)
	_, err := a.Login(Request{User: "nobody", Password: "irrelevant"})
	require.Error(t, err)
}

func TestCloseWithoutLoginIsNoop(t *testing.T) {
	a := New("whatever", nil)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}
