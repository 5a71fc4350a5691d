package ports_test

import (
	"testing"

	mocks "github.com/coursedesk/coursedesk/internal/mocks/auth"
	"github.com/coursedesk/coursedesk/internal/ports"
)

// This test only verifies that our doubles conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.SessionRepository = (*mocks.MemorySessionRepository)(nil)
	var _ ports.RoleMapper = (*mocks.StaticRoleMapper)(nil)
	var _ ports.AuthBackend = (*mocks.FakeAuthBackend)(nil)
	var _ ports.DataBackend = (*mocks.FakeDataBackend)(nil)
}
