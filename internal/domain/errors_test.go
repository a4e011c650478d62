package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	inner := NewError(CodeConcurrentUpdateConflict, "aggregate.Apply", "version moved")
	outer := Wrap(CodeInvestmentFailed, "investment.Invest", inner)

	assert.Equal(t, CodeInvestmentFailed, CodeOf(outer))
	assert.Equal(t, CodeConcurrentUpdateConflict, CodeOf(inner))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))

	wrapped := fmt.Errorf("handler: %w", outer)
	assert.Equal(t, CodeInvestmentFailed, CodeOf(wrapped))
}

func TestIsCode(t *testing.T) {
	inner := NewError(CodeConcurrentUpdateConflict, "aggregate.Apply", "version moved")
	outer := Wrap(CodeInvestmentFailed, "investment.Invest", inner)

	assert.True(t, IsCode(outer, CodeInvestmentFailed))
	assert.True(t, IsCode(outer, CodeConcurrentUpdateConflict))
	assert.False(t, IsCode(outer, CodeInvalidAmount))
	assert.False(t, IsCode(errors.New("plain"), CodeInternal))
}

func TestError_Error(t *testing.T) {
	err := NewError(CodeInvalidAmount, "ledger.Append", "too small")
	assert.Equal(t, "ledger.Append: INVALID_AMOUNT: too small", err.Error())

	err = &Error{Code: CodeInternal, Message: "x"}
	assert.Equal(t, "INTERNAL: x", err.Error())
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		raw     string
		want    Role
		wantErr bool
	}{
		{"investor", RoleInvestor, false},
		{"project_owner", RoleProjectOwner, false},
		{"owner", RoleProjectOwner, false},
		{"Creator", RoleProjectOwner, false},
		{"admin", RoleAdmin, false},
		{"superuser", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseRole(tt.raw)
			if tt.wantErr {
				assert.True(t, IsCode(err, CodeNotAuthorized))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentity_Require(t *testing.T) {
	var nobody *Identity
	err := nobody.Require("op", RoleInvestor)
	assert.Equal(t, CodeNotAuthenticated, CodeOf(err))

	owner := &Identity{UserID: uuid.New(), Role: RoleProjectOwner}
	err = owner.Require("op", RoleInvestor)
	assert.Equal(t, CodeNotAuthorized, CodeOf(err))

	assert.NoError(t, owner.Require("op", RoleInvestor, RoleProjectOwner))
}
