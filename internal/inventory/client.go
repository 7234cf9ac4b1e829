// Package inventory talks to a vSphere endpoint and enumerates guest disks.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/vim25/soap"

	logging "github.com/example/vmdisk-report/internal/log"
)

// ConnectError wraps any failure to open a session. It is fatal for a run.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Session is an authenticated connection to vCenter or ESXi. It is owned by a
// single caller and must be closed with Disconnect.
type Session struct {
	client  *govmomi.Client
	address string
	closed  bool
}

// Connect logs in to address. The address may be a host name, host:port or a
// full SDK URL. Server certificates are not verified.
func Connect(ctx context.Context, address, username, password string) (*Session, error) {
	log := logging.FromContext(ctx)

	u, err := soap.ParseURL(address)
	if err != nil {
		return nil, &ConnectError{Address: address, Err: err}
	}
	if u == nil {
		return nil, &ConnectError{Address: address, Err: errors.New("empty address")}
	}
	u.User = url.UserPassword(username, password)

	start := time.Now()
	client, err := govmomi.NewClient(ctx, u, true)
	if err != nil {
		return nil, &ConnectError{Address: address, Err: err}
	}
	log.Debug().
		Str("endpoint", u.Host).
		Str("product", client.ServiceContent.About.FullName).
		Int64("ms", time.Since(start).Milliseconds()).
		Msg("inventory: connected")

	return &Session{client: client, address: address}, nil
}

// Address returns the address the session was opened with.
func (s *Session) Address() string { return s.address }

// About describes the endpoint product, e.g. "VMware vCenter Server 8.0.2".
func (s *Session) About() string {
	return s.client.ServiceContent.About.FullName
}

// Disconnect logs out. Calling it more than once is a no-op.
func (s *Session) Disconnect(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.client.Logout(ctx); err != nil {
		return fmt.Errorf("logging out of %s: %w", s.address, err)
	}
	return nil
}
