package enums

// ActorRole identifies the kind of principal calling the API.
type ActorRole string

const (
	ActorRoleClient ActorRole = "client"
	ActorRoleWorker ActorRole = "worker"
	ActorRoleAdmin  ActorRole = "admin"
	// ActorRoleSystem marks reconciler and webhook driven mutations.
	ActorRoleSystem ActorRole = "system"
)

var actorRoles = []ActorRole{ActorRoleClient, ActorRoleWorker, ActorRoleAdmin, ActorRoleSystem}

func (r ActorRole) String() string { return string(r) }

func (r ActorRole) IsValid() bool { return oneOf(r, actorRoles) }

// Counterpart returns the other booking party, or "" for non-parties.
func (r ActorRole) Counterpart() ActorRole {
	switch r {
	case ActorRoleClient:
		return ActorRoleWorker
	case ActorRoleWorker:
		return ActorRoleClient
	}
	return ""
}

// IsParty reports whether r can be a side of a booking.
func (r ActorRole) IsParty() bool {
	return r == ActorRoleClient || r == ActorRoleWorker
}

// ParseActorRole is case-insensitive; JWT role claims are not normalized upstream.
func ParseActorRole(value string) (ActorRole, error) {
	return parse("actor role", value, actorRoles, lowerTrim)
}
