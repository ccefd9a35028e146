package state

// Access answers the two authorization questions the dispatcher asks.
// It holds no state of its own and caches nothing: every call reads the
// live config and allow-list.
type Access struct {
	Config *ConfigStore
	Allow  *AllowList
}

func (a Access) IsAdmin(identity string) bool {
	return a.Config.IsAdmin(identity)
}

// IsAuthorized reports whether the caller may use the bot. The admin is
// always allowed, and everyone is allowed while the allow-list is empty.
func (a Access) IsAuthorized(identity string) bool {
	return a.IsAdmin(identity) || a.Allow.Empty() || a.Allow.Contains(identity)
}
