package model

// Identity is the caller resolved by the authentication provider.
type Identity struct {
	Username    string
	Permissions []string
}

// Has reports whether the identity carries the given permission string.
func (i Identity) Has(permission string) bool {
	for _, p := range i.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
