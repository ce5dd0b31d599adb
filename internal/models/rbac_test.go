package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{"read", ActionRead, false},
		{"  MANAGE  ", ActionManage, false},
		{"Delete", ActionDelete, false},
		{"destroy", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := ParseAction(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseRequirementResourceAction(t *testing.T) {
	req, err := ParseRequirement("users:read")
	require.NoError(t, err)
	assert.Equal(t, Requirement{Resource: "users", Action: ActionRead}, req)
}

func TestParseRequirementBareName(t *testing.T) {
	req, err := ParseRequirement("export-reports")
	require.NoError(t, err)
	assert.Equal(t, Requirement{Name: "export-reports"}, req)
}

func TestParseRequirementRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "   ", "users:destroy", ":read", "users:"} {
		_, err := ParseRequirement(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestRequirementMatches(t *testing.T) {
	perm := Permission{Name: "users:read", Resource: "users", Action: ActionRead}

	byPair := Requirement{Resource: "users", Action: ActionRead}
	assert.True(t, byPair.Matches(perm))

	byName := Requirement{Name: "users:read"}
	assert.True(t, byName.Matches(perm))

	wrongAction := Requirement{Resource: "users", Action: ActionDelete}
	assert.False(t, wrongAction.Matches(perm))

	wrongResource := Requirement{Resource: "roles", Action: ActionRead}
	assert.False(t, wrongResource.Matches(perm))

	wrongName := Requirement{Name: "roles:read"}
	assert.False(t, wrongName.Matches(perm))
}
