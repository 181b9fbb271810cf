package domain

// Credential holds the portal login identity and the fixed organization
// context sent with every authenticated request. Immutable for the process
// lifetime; owned by the portal session.
type Credential struct {
	Username         string
	Password         string
	OrganizationID   string
	OrganizationName string
	UserID           string
}
