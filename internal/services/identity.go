package services

// IdentityKey is every signal we have about who is voting. Empty strings mean
// the signal is absent; IPAddress is always supplied by the resolver.
type IdentityKey struct {
	UserID      *uint
	AnonymousID string
	SessionID   string
	Fingerprint string
	IPAddress   string
}

func (k IdentityKey) Validate() error {
	if k.IPAddress == "" {
		return ErrIdentityIncomplete
	}
	return nil
}

// Fields lists the populated signals, for logging. Values are never logged.
func (k IdentityKey) Fields() []string {
	fields := make([]string, 0, 5)
	if k.UserID != nil {
		fields = append(fields, "user_id")
	}
	if k.AnonymousID != "" {
		fields = append(fields, "anonymous_id")
	}
	if k.SessionID != "" {
		fields = append(fields, "session_id")
	}
	if k.Fingerprint != "" {
		fields = append(fields, "fingerprint")
	}
	if k.IPAddress != "" {
		fields = append(fields, "ip_address")
	}
	return fields
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
