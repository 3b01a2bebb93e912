package presence

// ConnectionInfo is a snapshot of one registered connection
type ConnectionInfo struct {
	ID            string `json:"id"`
	Role          Role   `json:"role"`
	ScreenID      string `json:"screenId,omitempty"`
	ConnectedAt   int64  `json:"connectedAt"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
}

// Filter selects the connections an event is delivered to
type Filter func(ConnectionInfo) bool

// All matches every connection
func All() Filter {
	return func(ConnectionInfo) bool { return true }
}

// ToAdmins matches every admin connection
func ToAdmins() Filter {
	return func(c ConnectionInfo) bool { return c.Role == RoleAdmin }
}

// ToScreen matches the screen connections for one screen id
func ToScreen(screenID string) Filter {
	return func(c ConnectionInfo) bool { return c.Role == RoleScreen && c.ScreenID == screenID }
}

// ToScreens matches screen connections for any of the ids
func ToScreens(screenIDs ...string) Filter {
	set := make(map[string]struct{}, len(screenIDs))
	for _, id := range screenIDs {
		set[id] = struct{}{}
	}
	return func(c ConnectionInfo) bool {
		if c.Role != RoleScreen {
			return false
		}
		_, ok := set[c.ScreenID]
		return ok
	}
}

// Or matches connections accepted by any filter
func Or(filters ...Filter) Filter {
	return func(c ConnectionInfo) bool {
		for _, f := range filters {
			if f(c) {
				return true
			}
		}
		return false
	}
}
