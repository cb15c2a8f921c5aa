package syndication

// Roles recognized by the authorization check.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
	RoleOwner = "owner"
)

// Actor is the authenticated caller of a syndication operation, extracted
// from the request's JWT by the HTTP layer.
type Actor struct {
	UserID int64
	Role   string
}

// canManage reports whether the actor may syndicate or remove the listing:
// administrators always, owners and agents only for their own listings.
func (a Actor) canManage(ownerID, agentID int64) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleOwner:
		return a.UserID == ownerID
	case RoleAgent:
		return agentID != 0 && a.UserID == agentID
	default:
		return false
	}
}
