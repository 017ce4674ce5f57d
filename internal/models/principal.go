package models

// Claim type identifiers checked when extracting the caller's directory
// object ID, in precedence order.
const (
	ClaimObjectIdentifier = "http://schemas.microsoft.com/identity/claims/objectidentifier"
	ClaimOID              = "oid"
	ClaimSubject          = "sub"
)

// PrincipalClaim is a single typ/val pair from the hosting perimeter's
// client principal header.
type PrincipalClaim struct {
	Type  string `json:"typ"`
	Value string `json:"val"`
}

// ClientPrincipal is the decoded caller identity assertion. The hosting
// perimeter validates its signature and session; this service only reads it.
type ClientPrincipal struct {
	AuthType string           `json:"auth_typ"`
	Claims   []PrincipalClaim `json:"claims"`
	NameType string           `json:"name_typ"`
	RoleType string           `json:"role_typ"`
}

// Claim returns the first value for the given claim type, or "".
func (p *ClientPrincipal) Claim(typ string) string {
	if p == nil {
		return ""
	}
	for _, c := range p.Claims {
		if c.Type == typ {
			return c.Value
		}
	}
	return ""
}

// ObjectID extracts the caller's directory object identifier, checking the
// full identifier claim URI, then the short alias, then the token subject.
func (p *ClientPrincipal) ObjectID() string {
	for _, typ := range []string{ClaimObjectIdentifier, ClaimOID, ClaimSubject} {
		if v := p.Claim(typ); v != "" {
			return v
		}
	}
	return ""
}

// CallerIdentity is the caller's directory profile, sourced externally and
// read-only to this service.
type CallerIdentity struct {
	ID                string `json:"id"`
	UserType          string `json:"userType"`
	AccountEnabled    bool   `json:"accountEnabled"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}
