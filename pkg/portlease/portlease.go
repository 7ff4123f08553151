// Package portlease claims the first bindable TCP port in a range.
package portlease

import (
	"net"
	"strconv"
	"sync"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
)

const (
	DefaultPort     = 8080
	DefaultAttempts = 100
)

// Lease is exclusive ownership of a bound port. It is released by Close.
type Lease struct {
	Port     int
	listener net.Listener
	once     sync.Once
	closeErr error
}

// Listener returns the bound socket. Ownership stays with the Lease.
func (l *Lease) Listener() net.Listener {
	return l.listener
}

func (l *Lease) Addr() net.Addr {
	return l.listener.Addr()
}

// Close releases the port. Repeated calls return the first result.
func (l *Lease) Close() error {
	l.once.Do(func() {
		l.closeErr = l.listener.Close()
	})
	return l.closeErr
}

// Bind probes [preferred, preferred+attempts) in ascending order and returns
// a lease on the first port that accepts an exclusive listen. Candidates that
// fail are left with no open socket.
func Bind(host string, preferred, attempts int, logger logging.Logger) (*Lease, error) {
	if err := ValidateRange(preferred, attempts); err != nil {
		return nil, err
	}

	var lastErr error
	for port := preferred; port < preferred+attempts; port++ {
		address := net.JoinHostPort(host, strconv.Itoa(port))
		listener, err := net.Listen("tcp", address)
		if err != nil {
			logger.Debugf("Port %d unavailable: %v", port, err)
			lastErr = err
			continue
		}
		logger.Infof("Bound port %d", port)
		return &Lease{Port: port, listener: listener}, nil
	}

	return nil, errors.NewPortExhaustedError("no available port in range", lastErr).
		WithContext("first_port", preferred).
		WithContext("attempts", attempts)
}

// ValidateRange checks that the whole candidate range is made of valid ports.
func ValidateRange(preferred, attempts int) error {
	if attempts < 1 {
		return errors.NewValidationError("attempts must be at least 1", nil).WithContext("attempts", attempts)
	}
	if preferred < 1 || preferred > 65535 {
		return errors.NewValidationError("port must be between 1 and 65535", nil).WithContext("port", preferred)
	}
	if preferred+attempts-1 > 65535 {
		return errors.NewValidationError("port range exceeds 65535", nil).
			WithContext("port", preferred).
			WithContext("attempts", attempts)
	}
	return nil
}
