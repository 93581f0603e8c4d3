package pincode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashVerify(t *testing.T) {
	phc, err := Hash(Default, "4821")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(phc, "$argon2id$v=19$"))

	require.True(t, Verify("4821", phc))
	require.False(t, Verify("0000", phc))
	require.False(t, Verify("4821", "not-a-phc-string"))
}

func TestHash_EmptyRejected(t *testing.T) {
	_, err := Hash(Default, "")
	require.Error(t, err)
}

func TestHash_SaltedPerCall(t *testing.T) {
	a, err := Hash(Default, "4821")
	require.NoError(t, err)
	b, err := Hash(Default, "4821")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
