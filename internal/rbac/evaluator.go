package rbac

// HasCapability reports whether actor's role grants c. A nil actor holds no
// capability, including those the guest role might define.
func HasCapability(actor *Actor, c Capability) bool {
	if actor == nil {
		return false
	}
	return CapabilitiesFor(actor.Role).Has(c)
}

// CanManageContent reports whether actor may edit content authored by
// ownerID. An empty ownerID never matches the actor.
func CanManageContent(actor *Actor, ownerID string) bool {
	return canActOnContent(actor, ownerID, CapEditOwnContent)
}

// CanDeleteContent reports whether actor may delete content authored by
// ownerID.
func CanDeleteContent(actor *Actor, ownerID string) bool {
	return canActOnContent(actor, ownerID, CapDeleteOwnContent)
}

func canActOnContent(actor *Actor, ownerID string, own Capability) bool {
	if actor == nil {
		return false
	}
	if HasCapability(actor, CapManageContent) || HasCapability(actor, CapModerateContent) {
		return true
	}
	// Ownership alone confers nothing without the matching capability.
	if ownerID != "" && ownerID == actor.ID {
		return HasCapability(actor, own)
	}
	return false
}

// CanManageUsers reports whether actor may manage the user targetID. An
// empty targetID asks about user management in general. Actors can never
// manage themselves through this path, which blocks self role changes.
func CanManageUsers(actor *Actor, targetID string) bool {
	if !HasCapability(actor, CapManageUsers) {
		return false
	}
	return targetID == "" || targetID != actor.ID
}
