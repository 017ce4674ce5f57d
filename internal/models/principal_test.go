package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectIDPrecedence(t *testing.T) {
	p := &ClientPrincipal{Claims: []PrincipalClaim{
		{Type: ClaimSubject, Value: "sub-value"},
		{Type: ClaimOID, Value: "oid-value"},
		{Type: ClaimObjectIdentifier, Value: "full-uri-value"},
	}}
	require.Equal(t, "full-uri-value", p.ObjectID())

	p.Claims = p.Claims[:2]
	require.Equal(t, "oid-value", p.ObjectID())

	p.Claims = p.Claims[:1]
	require.Equal(t, "sub-value", p.ObjectID())

	p.Claims = nil
	require.Empty(t, p.ObjectID())
}

func TestClaimOnNilPrincipal(t *testing.T) {
	var p *ClientPrincipal
	require.Empty(t, p.Claim(ClaimOID))
	require.Empty(t, p.ObjectID())
}
