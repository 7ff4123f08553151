package portlease

import (
	"net"
	"strconv"
	"testing"

	"github.com/phayes/freeport"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHost = "127.0.0.1"

func listen(port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort(testHost, strconv.Itoa(port)))
}

// occupy holds ports [base, base+n) and checks that base+n is free. It
// returns false when another process got in the way.
func occupy(t *testing.T, base, n int) bool {
	t.Helper()
	var held []net.Listener
	for port := base; port < base+n; port++ {
		l, err := listen(port)
		if err != nil {
			for _, h := range held {
				h.Close()
			}
			return false
		}
		held = append(held, l)
	}
	probe, err := listen(base + n)
	if err != nil {
		for _, h := range held {
			h.Close()
		}
		return false
	}
	probe.Close()
	t.Cleanup(func() {
		for _, h := range held {
			h.Close()
		}
	})
	return true
}

// occupiedRange finds a base port with n occupied ports followed by a free one.
func occupiedRange(t *testing.T, n int) int {
	t.Helper()
	for i := 0; i < 20; i++ {
		base, err := freeport.GetFreePort()
		require.NoError(t, err)
		if base+n+1 > 65535 {
			continue
		}
		if occupy(t, base, n) {
			return base
		}
	}
	t.Fatal("could not find a contiguous port range")
	return 0
}

func TestBind_PreferredPortFree(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	lease, err := Bind(testHost, port, 1, logging.NewNopLogger())
	require.NoError(t, err)
	defer lease.Close()

	assert.Equal(t, port, lease.Port)
	assert.Equal(t, port, lease.Addr().(*net.TCPAddr).Port)
}

func TestBind_SkipsOccupiedPorts(t *testing.T) {
	base := occupiedRange(t, 3)

	lease, err := Bind(testHost, base, 100, logging.NewNopLogger())
	require.NoError(t, err)
	defer lease.Close()

	assert.Equal(t, base+3, lease.Port)
}

func TestBind_DefaultRangeWithFirstThreeOccupied(t *testing.T) {
	if !occupy(t, DefaultPort, 3) {
		t.Skipf("ports %d-%d are not available on this host", DefaultPort, DefaultPort+3)
	}

	lease, err := Bind(testHost, DefaultPort, DefaultAttempts, logging.NewNopLogger())
	require.NoError(t, err)
	defer lease.Close()

	assert.Equal(t, 8083, lease.Port)
}

func TestBind_PortExhausted(t *testing.T) {
	base := occupiedRange(t, 3)

	lease, err := Bind(testHost, base, 3, logging.NewNopLogger())

	assert.Nil(t, lease)
	assert.True(t, errors.IsPortExhaustedError(err))
}

func TestBind_LeaseIsExclusiveUntilClosed(t *testing.T) {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)

	lease, err := Bind(testHost, port, 1, logging.NewNopLogger())
	require.NoError(t, err)

	_, err = Bind(testHost, port, 1, logging.NewNopLogger())
	assert.True(t, errors.IsPortExhaustedError(err))

	require.NoError(t, lease.Close())
	assert.NoError(t, lease.Close())

	again, err := Bind(testHost, port, 1, logging.NewNopLogger())
	require.NoError(t, err)
	again.Close()
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(8080, 100))
	assert.NoError(t, ValidateRange(65535, 1))
	assert.True(t, errors.IsValidationError(ValidateRange(8080, 0)))
	assert.True(t, errors.IsValidationError(ValidateRange(0, 10)))
	assert.True(t, errors.IsValidationError(ValidateRange(65530, 10)))
}
