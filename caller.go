package marketplace

// Role is the platform role of a caller as resolved by the orchestration layer.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Caller identifies who invokes an operation. The marketplace trusts the
// values it is given and performs no authentication itself.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Member returns a non-admin caller.
func Member(callerID string) Caller { return Caller{ID: callerID, Role: RoleMember} }

// Admin returns a platform admin caller.
func Admin(callerID string) Caller { return Caller{ID: callerID, Role: RoleAdmin} }

// IsAdmin reports whether the caller holds the platform admin role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// Policy lists, per operation, whether a platform admin may act in place of
// the record owner. Operations missing from Policy never accept an admin
// in place of the owner.
type Policy struct {
	DeactivateEntity   bool `json:"deactivate_entity" yaml:"deactivate_entity"`
	ReactivateEntity   bool `json:"reactivate_entity" yaml:"reactivate_entity"`
	ReviewRequest      bool `json:"review_request" yaml:"review_request"`
	RevokeConnection   bool `json:"revoke_connection" yaml:"revoke_connection"`
	UpdateListing      bool `json:"update_listing" yaml:"update_listing"`
	CloseListing       bool `json:"close_listing" yaml:"close_listing"`
	ManageVendorAccess bool `json:"manage_vendor_access" yaml:"manage_vendor_access"`
	ReviewQuote        bool `json:"review_quote" yaml:"review_quote"`
	Deduct             bool `json:"deduct" yaml:"deduct"`
}

// DefaultPolicy grants the admin every override listed in Policy.
func DefaultPolicy() Policy {
	return Policy{
		DeactivateEntity:   true,
		ReactivateEntity:   true,
		ReviewRequest:      true,
		RevokeConnection:   true,
		UpdateListing:      true,
		CloseListing:       true,
		ManageVendorAccess: true,
		ReviewQuote:        true,
		Deduct:             true,
	}
}

// allows reports whether caller may act on a record owned by owner, given
// the admin override for the operation.
func allows(caller Caller, owner string, adminOverride bool) bool {
	if caller.ID != "" && caller.ID == owner {
		return true
	}
	return adminOverride && caller.IsAdmin()
}

func deny(caller Caller, op string) error {
	return AuthorizationError{Caller: caller.ID, Operation: op}
}
