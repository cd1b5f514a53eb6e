package bot_test

import (
	"reflect"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/jensholdgaard/trinity/internal/bot"
	"github.com/jensholdgaard/trinity/internal/game"
)

func TestMemberIDs(t *testing.T) {
	members := []*discordgo.Member{
		{User: &discordgo.User{ID: "42"}},
		{User: &discordgo.User{ID: "7", Bot: true}},
		{User: &discordgo.User{ID: "not-a-snowflake"}},
		{},
		nil,
		{User: &discordgo.User{ID: "43"}},
	}
	got := bot.MemberIDs(members)
	if want := []game.ID{42, 43}; !reflect.DeepEqual(got, want) {
		t.Errorf("MemberIDs() = %v, want %v", got, want)
	}
}

func TestRoleIDs(t *testing.T) {
	roles := []*discordgo.Role{{ID: "100", Name: "@everyone"}, nil, {ID: "x"}, {ID: "7"}}
	got := bot.RoleIDs(roles)
	if want := []game.ID{100, 7}; !reflect.DeepEqual(got, want) {
		t.Errorf("RoleIDs() = %v, want %v", got, want)
	}
}

func TestFindRole(t *testing.T) {
	roles := []*discordgo.Role{{ID: "100", Name: "@everyone"}, {ID: "7", Name: "Farmers"}}
	tests := []struct {
		key  string
		want string
	}{
		{key: "7", want: "7"},
		{key: "farmers", want: "7"},
		{key: "FARMERS", want: "7"},
		{key: "Knights", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := bot.FindRole(roles, tt.key); got != tt.want {
				t.Errorf("FindRole(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
