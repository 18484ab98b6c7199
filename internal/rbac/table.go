package rbac

// Each role's grant is derived from the role below it, so admin ⊇ moderator ⊇
// member ⊇ guest holds by construction.
const (
	guestCapabilities  CapabilitySet = 0
	memberCapabilities               = CapabilitySet(CapCreateContent | CapEditOwnContent | CapDeleteOwnContent | CapViewPrivateContent)

	moderatorCapabilities = memberCapabilities | CapabilitySet(CapModerateContent)
	adminCapabilities     = moderatorCapabilities | CapabilitySet(CapManageUsers|CapManageContent)
)

// CapabilitiesFor returns the fixed capability set held by role. Unknown
// roles hold nothing.
func CapabilitiesFor(role Role) CapabilitySet {
	switch role {
	case RoleAdmin:
		return adminCapabilities
	case RoleModerator:
		return moderatorCapabilities
	case RoleMember:
		return memberCapabilities
	case RoleGuest:
		return guestCapabilities
	}
	return guestCapabilities
}

// Flags is the boolean view of a role's grant consumed by the frontend to
// toggle affordances.
type Flags struct {
	CanManageUsers        bool `json:"can_manage_users"`
	CanManageContent      bool `json:"can_manage_content"`
	CanModerateContent    bool `json:"can_moderate_content"`
	CanCreateContent      bool `json:"can_create_content"`
	CanEditOwnContent     bool `json:"can_edit_own_content"`
	CanDeleteOwnContent   bool `json:"can_delete_own_content"`
	CanViewPrivateContent bool `json:"can_view_private_content"`
}

// FlagsFor expands the role's capability set into Flags.
func FlagsFor(role Role) Flags {
	set := CapabilitiesFor(role)
	return Flags{
		CanManageUsers:        set.Has(CapManageUsers),
		CanManageContent:      set.Has(CapManageContent),
		CanModerateContent:    set.Has(CapModerateContent),
		CanCreateContent:      set.Has(CapCreateContent),
		CanEditOwnContent:     set.Has(CapEditOwnContent),
		CanDeleteOwnContent:   set.Has(CapDeleteOwnContent),
		CanViewPrivateContent: set.Has(CapViewPrivateContent),
	}
}
