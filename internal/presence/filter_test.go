package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilters(t *testing.T) {
	screenA := ConnectionInfo{ID: "1", Role: RoleScreen, ScreenID: "A"}
	screenB := ConnectionInfo{ID: "2", Role: RoleScreen, ScreenID: "B"}
	admin := ConnectionInfo{ID: "3", Role: RoleAdmin}

	tests := []struct {
		name   string
		filter Filter
		want   []bool // screenA, screenB, admin
	}{
		{"all", All(), []bool{true, true, true}},
		{"admins", ToAdmins(), []bool{false, false, true}},
		{"one screen", ToScreen("A"), []bool{true, false, false}},
		{"screen set", ToScreens("A", "B"), []bool{true, true, false}},
		{"empty screen set", ToScreens(), []bool{false, false, false}},
		{"playlist audience", Or(ToScreens("B"), ToAdmins()), []bool{false, true, true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := []bool{tt.filter(screenA), tt.filter(screenB), tt.filter(admin)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToScreen_IgnoresAdminWithSameID(t *testing.T) {
	admin := ConnectionInfo{Role: RoleAdmin, ScreenID: "A"}
	assert.False(t, ToScreen("A")(admin))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("screen")
	assert.NoError(t, err)
	assert.Equal(t, RoleScreen, role)

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	yes := true
	assert.NoError(t, validateCommand(EventRefresh, CommandPayload{}))
	assert.NoError(t, validateCommand(EventMosaicToggle, CommandPayload{}))
	assert.NoError(t, validateCommand(EventNavigate, CommandPayload{Direction: DirectionNext}))
	assert.NoError(t, validateCommand(EventMute, CommandPayload{Muted: &yes}))
	assert.Error(t, validateCommand(EventConnected, CommandPayload{}))
}
