package custody_test

import (
	"testing"

	"github.com/gyber/go-custody"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	plain := &custody.User{Username: "plain"}
	verified := &custody.User{Username: "verified", IsVerified: true}
	admin := &custody.User{Username: "admin", IsAdmin: true}
	both := &custody.User{Username: "both", IsVerified: true, IsAdmin: true}

	tests := []struct {
		name     string
		user     *custody.User
		gates    []custody.Gate
		wantCode string
	}{
		{name: "no identity", user: nil, wantCode: custody.TextCodeUnauthorized},
		{name: "no identity with gates", user: nil, gates: []custody.Gate{custody.RequireVerified}, wantCode: custody.TextCodeUnauthorized},
		{name: "no gates", user: plain},
		{name: "nil gate is skipped", user: plain, gates: []custody.Gate{nil}},
		{name: "verified", user: verified, gates: []custody.Gate{custody.RequireVerified}},
		{name: "not verified", user: plain, gates: []custody.Gate{custody.RequireVerified}, wantCode: custody.TextCodeNotVerified},
		{name: "admin", user: admin, gates: []custody.Gate{custody.RequireAdmin}},
		{name: "not admin", user: verified, gates: []custody.Gate{custody.RequireAdmin}, wantCode: custody.TextCodeNotAdmin},
		{name: "first failing gate wins", user: admin, gates: []custody.Gate{custody.RequireVerified, custody.RequireAdmin}, wantCode: custody.TextCodeNotVerified},
		{name: "all pass", user: both, gates: []custody.Gate{custody.RequireVerified, custody.RequireAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := custody.Authorize(tt.user, tt.gates...)
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, custody.HasTextCode(err, tt.wantCode), "unexpected error: %v", err)
		})
	}
}

func TestGates_NilUser(t *testing.T) {
	assert.True(t, custody.HasTextCode(custody.RequireVerified(nil), custody.TextCodeUnauthorized))
	assert.True(t, custody.HasTextCode(custody.RequireAdmin(nil), custody.TextCodeUnauthorized))
}
