package lockengine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLockInfoNilBodyIsRefresh(t *testing.T) {
	info, err := ParseLockInfo(nil)
	require.NoError(t, err)
	assert.False(t, info.IsNewLock)
	assert.False(t, info.Exclusive)
}

func TestParseLockInfoExclusive(t *testing.T) {
	body := `<?xml version="1.0"?>
<lockinfo xmlns="DAV:">
  <lockscope><exclusive/></lockscope>
  <locktype><write/></locktype>
</lockinfo>`
	info, err := ParseLockInfo(strings.NewReader(body))
	require.NoError(t, err)
	assert.True(t, info.IsNewLock)
	assert.True(t, info.Exclusive)
}

func TestParseLockInfoShared(t *testing.T) {
	body := `<?xml version="1.0"?>
<lockinfo xmlns="DAV:">
  <lockscope><shared/></lockscope>
  <locktype><read/></locktype>
</lockinfo>`
	info, err := ParseLockInfo(strings.NewReader(body))
	require.NoError(t, err)
	assert.True(t, info.IsNewLock)
	assert.False(t, info.Exclusive)
}

func TestParseLockInfoEmptyBodyIsNewLockNotRefresh(t *testing.T) {
	body := `<lockinfo/>`
	info, err := ParseLockInfo(strings.NewReader(body))
	require.NoError(t, err)
	assert.True(t, info.IsNewLock)
	assert.False(t, info.Exclusive)
}

func TestParseLockInfoExclusiveDominatesRegardlessOfOrder(t *testing.T) {
	body := `<lockinfo><lockscope><shared/><exclusive/></lockscope></lockinfo>`
	info, err := ParseLockInfo(strings.NewReader(body))
	require.NoError(t, err)
	assert.True(t, info.Exclusive)
}

func TestDecodeTimeoutShortSliceIsZero(t *testing.T) {
	assert.Equal(t, int64(0), decodeTimeout(nil))
	assert.Equal(t, int64(0), decodeTimeout([]byte{1, 2, 3}))
}

func TestLockTypeBytes(t *testing.T) {
	assert.Equal(t, []byte{1}, lockTypeBytes(true))
	assert.Equal(t, []byte{0}, lockTypeBytes(false))
}
