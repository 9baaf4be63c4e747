package models

// Caller roles as resolved by the boundary layer. The engine never
// authenticates; it only makes authorization decisions from this context.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleCustomer = "customer"
)

// Caller identifies who is invoking a service operation.
type Caller struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Privileged reports whether the caller may act on bookings they do not own.
func (c Caller) Privileged() bool {
	return c.Role == RoleAdmin || c.Role == RoleManager
}

// Admin reports whether the caller may use administrative overrides (delete).
func (c Caller) Admin() bool {
	return c.Role == RoleAdmin
}

// Owns reports whether the caller is the customer identified by customerID.
func (c Caller) Owns(customerID string) bool {
	return c.UserID != "" && c.UserID == customerID
}
