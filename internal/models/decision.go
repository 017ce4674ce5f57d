package models

// Authorization modes reported in decisions.
const (
	ModeLocalBypass        = "local_bypass"
	ModeEntraAuthenticated = "entra_authenticated"
)

// AuthorizationDecision is produced fresh for every inbound invite request
// and never persisted.
type AuthorizationDecision struct {
	Authorized bool            `json:"authorized"`
	Mode       string          `json:"mode,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Status     int             `json:"-"`
	Caller     *CallerIdentity `json:"caller,omitempty"`
}
