package custody

// Gate inspects a resolved identity before an operation runs
type Gate func(user *User) error

// RequireVerified rejects identities whose email is not verified
func RequireVerified(user *User) error {
	if user == nil {
		return newFrom(ErrUnauthorized, nil)
	}
	if !user.IsVerified {
		return newFrom(ErrNotVerified, map[string]any{"username": user.Username})
	}
	return nil
}

// RequireAdmin rejects identities without the admin flag
func RequireAdmin(user *User) error {
	if user == nil {
		return newFrom(ErrUnauthorized, nil)
	}
	if !user.IsAdmin {
		return newFrom(ErrNotAdmin, map[string]any{"username": user.Username})
	}
	return nil
}

// Authorize runs gates in order. A nil identity never reaches a gate.
func Authorize(user *User, gates ...Gate) error {
	if user == nil {
		return newFrom(ErrUnauthorized, nil)
	}
	for _, gate := range gates {
		if gate == nil {
			continue
		}
		if err := gate(user); err != nil {
			return err
		}
	}
	return nil
}
