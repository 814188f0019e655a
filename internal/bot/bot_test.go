package bot

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"dominionbot/internal/roles"
	"dominionbot/internal/sheets"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGuildId = "100"

var (
	signup    = roles.Role{Id: "900", Name: "Signup for League"}
	newPlayer = roles.Role{Id: "901", Name: "New League Player"}
	player    = roles.Role{Id: "902", Name: "League Player"}
	mod       = roles.Role{Id: "903", Name: "League Mod"}
	booster   = roles.Role{Id: "950", Name: "Server Booster"}
)

type editCall struct {
	op     roles.Operation
	member roles.MemberId
	roles  []roles.RoleId
	reason string
}

// In-memory guild that applies role edits to its own state
type fakePlatform struct {
	mu       sync.Mutex
	guild    roles.Guild
	guildErr error
	fail     map[roles.MemberId]bool
	calls    []editCall
}

func newFakePlatform(members ...roles.Member) *fakePlatform {
	guild := roles.Guild{
		Id:      testGuildId,
		Roles:   []roles.Role{signup, newPlayer, player, mod, booster},
		Members: map[roles.MemberId]roles.Member{},
	}
	for _, member := range members {
		guild.Members[member.Id] = member
	}
	return &fakePlatform{guild: guild, fail: map[roles.MemberId]bool{}}
}

func (platform *fakePlatform) Guild(ctx context.Context) (roles.Guild, error) {
	platform.mu.Lock()
	defer platform.mu.Unlock()
	if platform.guildErr != nil {
		return roles.Guild{}, platform.guildErr
	}
	return platform.guild, nil
}

func (platform *fakePlatform) edit(op roles.Operation, memberId roles.MemberId, roleIds []roles.RoleId, reason string) error {
	platform.mu.Lock()
	defer platform.mu.Unlock()
	platform.calls = append(platform.calls, editCall{op, memberId, roleIds, reason})
	if platform.fail[memberId] {
		return errors.New("403 Forbidden: Missing Permissions")
	}
	if _, ok := platform.guild.Members[memberId]; !ok {
		return errors.New("404 Not Found: Unknown Member")
	}
	// Copy on write so guilds handed out earlier stay unchanged
	members := make(map[roles.MemberId]roles.Member, len(platform.guild.Members))
	for id, member := range platform.guild.Members {
		members[id] = member
	}
	member := members[memberId]
	updated := []roles.RoleId{}
	for _, id := range member.Roles {
		if op == roles.OperationAdd || !slices.Contains(roleIds, id) {
			updated = append(updated, id)
		}
	}
	if op == roles.OperationAdd {
		for _, id := range roleIds {
			if !slices.Contains(updated, id) {
				updated = append(updated, id)
			}
		}
	}
	member.Roles = updated
	members[memberId] = member
	platform.guild.Members = members
	return nil
}

func (platform *fakePlatform) AddRoles(ctx context.Context, memberId roles.MemberId, roleIds []roles.RoleId, reason string) error {
	return platform.edit(roles.OperationAdd, memberId, roleIds, reason)
}

func (platform *fakePlatform) RemoveRoles(ctx context.Context, memberId roles.MemberId, roleIds []roles.RoleId, reason string) error {
	return platform.edit(roles.OperationRemove, memberId, roleIds, reason)
}

func (platform *fakePlatform) editCalls() []editCall {
	platform.mu.Lock()
	defer platform.mu.Unlock()
	return append([]editCall{}, platform.calls...)
}

type fakeSender struct {
	mu       sync.Mutex
	messages []string
}

func (sender *fakeSender) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.messages = append(sender.messages, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (sender *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	sender.messages = append(sender.messages, embed.Title)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (sender *fakeSender) sent() []string {
	sender.mu.Lock()
	defer sender.mu.Unlock()
	return append([]string{}, sender.messages...)
}

type fakeSource struct {
	requested roles.RequestedRoles
	err       error
	release   chan struct{}
}

func (source *fakeSource) GetRequestedRoles(ctx context.Context) (roles.RequestedRoles, error) {
	if source.release != nil {
		<-source.release
	}
	return source.requested, source.err
}

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T, platform *fakePlatform, source *fakeSource) (*Bot, *fakeSender) {
	database := NewDatabaseBot(filepath.Join(t.TempDir(), "requested_roles.json"))
	bot := NewBot(Options{GuildId: testGuildId, Parallelism: 2}, database, source)
	sender := &fakeSender{}
	bot.attach(context.Background(), platform, sender)
	bot.now = func() time.Time { return testNow }
	t.Cleanup(bot.quit)
	return bot, sender
}

func command(content string) Incoming {
	return Incoming{ChannelId: "c1", GuildId: testGuildId, AuthorId: "42", AuthorName: "operator", Content: content}
}

func texts(responses []Response) []string {
	result := []string{}
	for _, response := range responses {
		switch r := response.(type) {
		case ResponseString:
			result = append(result, r.string)
		case ResponseEmbed:
			result = append(result, r.Title)
		}
	}
	return result
}

func joined(responses []Response) string {
	return strings.Join(texts(responses), "\n")
}

func saveSnapshot(t *testing.T, bot *Bot, requested roles.RequestedRoles) {
	require.NoError(t, bot.database.SetRequestedRoles(requested, testNow.Add(-90*time.Minute)))
}

func TestHandleIgnoresOtherGuildsAndPlainMessages(t *testing.T) {
	bot, _ := newTestBot(t, newFakePlatform(), &fakeSource{})

	in := command("!hello")
	in.GuildId = ""
	assert.Nil(t, bot.Handle(in))
	assert.Nil(t, bot.Handle(command("hello there")))
}

func TestHandleInvalidInput(t *testing.T) {
	bot, _ := newTestBot(t, newFakePlatform(), &fakeSource{})

	assert.Contains(t, joined(bot.Handle(command("!dance"))), "Command `dance` not recognised")
	assert.Contains(t, joined(bot.Handle(command("!addrole <@1>"))), "requires a member and a role")
}

func TestHello(t *testing.T) {
	bot, _ := newTestBot(t, newFakePlatform(), &fakeSource{})

	assert.Equal(t, []string{"Hello <@42>~"}, texts(bot.Handle(command("!hello"))))
	assert.Equal(t, []string{"Hello <@7>~"}, texts(bot.Handle(command("!hello <@!7>"))))
}

func TestHelp(t *testing.T) {
	bot, _ := newTestBot(t, newFakePlatform(), &fakeSource{})

	responses := bot.Handle(command("!help"))
	require.Len(t, responses, 1)
	embed := responses[0].(ResponseEmbed)
	assert.Len(t, embed.Fields, 8)
	assert.Equal(t, "`!fix_roles [write=false]`", embed.Fields[5].Name)
}

func TestAddRoleByName(t *testing.T) {
	platform := newFakePlatform(roles.Member{Id: "111", Username: "alice"})
	bot, _ := newTestBot(t, platform, &fakeSource{})

	responses := bot.Handle(command("!addrole <@111> Server Booster"))

	assert.Equal(t, []string{"Gave role `Server Booster` to `111`"}, texts(responses))
	assert.Equal(t, []editCall{{roles.OperationAdd, "111", []roles.RoleId{booster.Id}, "operator (42) via addrole"}}, platform.editCalls())
}

func TestRemoveRoleByMention(t *testing.T) {
	platform := newFakePlatform(roles.Member{Id: "111", Roles: []roles.RoleId{mod.Id}})
	bot, _ := newTestBot(t, platform, &fakeSource{})

	responses := bot.Handle(command("!removerole 111 <@&903>"))

	assert.Equal(t, []string{"Took role `League Mod` from `111`"}, texts(responses))
	guild, _ := platform.Guild(context.Background())
	assert.Empty(t, guild.Members["111"].Roles)
}

func TestAddRoleErrors(t *testing.T) {
	platform := newFakePlatform(roles.Member{Id: "111"})
	bot, _ := newTestBot(t, platform, &fakeSource{})

	assert.Contains(t, joined(bot.Handle(command("!addrole 222 League Mod"))), "Member `222` is not in this server")
	assert.Contains(t, joined(bot.Handle(command("!addrole 111 Typo Role"))), "Role `Typo Role` does not exist")

	platform.fail["111"] = true
	assert.Contains(t, joined(bot.Handle(command("!addrole 111 League Mod"))), "Discord refused the change")

	platform.guildErr = errors.New("gateway down")
	assert.Contains(t, joined(bot.Handle(command("!addrole 111 League Mod"))), "gateway down")
}

func TestUpdateRequestedRoles(t *testing.T) {
	source := &fakeSource{
		requested: roles.RequestedRoles{"111": roles.NewRoleSet("League Player")},
		release:   make(chan struct{}),
	}
	bot, sender := newTestBot(t, newFakePlatform(), source)

	responses := bot.Handle(command("!update_requested_roles"))

	require.Len(t, responses, 1)
	assert.Contains(t, joined(responses), "Started fetching requested roles")
	assert.Equal(t, int32(1), bot.tasks.Inflight())
	assert.Empty(t, sender.sent())

	close(source.release)
	require.NoError(t, bot.tasks.Wait(context.Background()))

	messages := sender.sent()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "Loaded requested roles for 1 members")
	snapshot, err := bot.database.GetRequestedRoles()
	require.NoError(t, err)
	assert.Equal(t, source.requested, snapshot.RequestedRoles)
	assert.True(t, testNow.Equal(snapshot.FetchedAt))
}

func TestUpdateRequestedRolesSchemaMismatch(t *testing.T) {
	source := &fakeSource{err: &sheets.SchemaMismatchError{Range: "name headers", Want: sheets.NameHeaders, Got: []string{"user"}}}
	bot, sender := newTestBot(t, newFakePlatform(), source)

	bot.Handle(command("!update_requested_roles"))
	require.NoError(t, bot.tasks.Wait(context.Background()))

	messages := sender.sent()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "sheet layout changed")
	_, err := bot.database.GetRequestedRoles()
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestUpdateRequestedRolesTransportError(t *testing.T) {
	source := &fakeSource{err: &sheets.TransportError{Attempts: 10, Err: context.DeadlineExceeded}}
	bot, sender := newTestBot(t, newFakePlatform(), source)

	bot.Handle(command("!update_requested_roles"))
	require.NoError(t, bot.tasks.Wait(context.Background()))

	assert.Contains(t, strings.Join(sender.sent(), "\n"), "after 10 attempts")
}

func TestMismatchingRolesWithoutSnapshot(t *testing.T) {
	bot, _ := newTestBot(t, newFakePlatform(), &fakeSource{})

	assert.Contains(t, joined(bot.Handle(command("!mismatching_roles"))), "run `!update_requested_roles` first")
	assert.Contains(t, joined(bot.Handle(command("!fix_roles write=true"))), "run `!update_requested_roles` first")
}

func TestMismatchingRoles(t *testing.T) {
	platform := newFakePlatform(
		roles.Member{Id: "111", Username: "alice", Roles: []roles.RoleId{newPlayer.Id, booster.Id}},
		roles.Member{Id: "30", Username: "carol", Roles: []roles.RoleId{mod.Id}},
	)
	bot, _ := newTestBot(t, platform, &fakeSource{})
	saveSnapshot(t, bot, roles.RequestedRoles{
		"111": roles.NewRoleSet("League Player"),
		"30":  roles.NewRoleSet("League Mod"),
		"222": roles.NewRoleSet("League Mod"),
		"5":   roles.NewRoleSet("Typo Role"),
	})

	report := joined(bot.Handle(command("!mismatching_roles")))

	assert.Contains(t, report, "(1h30m0s ago)")
	assert.Contains(t, report, "`111` alice: +League Player, -New League Player")
	assert.NotContains(t, report, "carol")
	assert.NotContains(t, report, "Server Booster")
	assert.Contains(t, report, "`222`: not in this server")
	assert.Contains(t, report, "`5`: role `Typo Role` does not exist in this server")
	assert.Less(t, strings.Index(report, "`5`"), strings.Index(report, "`222`"))
	assert.Empty(t, platform.editCalls())
}

func TestFixRolesDryRun(t *testing.T) {
	platform := newFakePlatform(roles.Member{Id: "111", Roles: []roles.RoleId{newPlayer.Id}})
	bot, _ := newTestBot(t, platform, &fakeSource{})
	saveSnapshot(t, bot, roles.RequestedRoles{"111": roles.NewRoleSet("League Player")})

	responses := texts(bot.Handle(command("!fix_roles")))

	require.NotEmpty(t, responses)
	assert.True(t, strings.HasPrefix(responses[0], "Dry run, no changes were made."))
	assert.Contains(t, strings.Join(responses, "\n"), "+League Player, -New League Player")
	assert.Empty(t, platform.editCalls())
}

func TestFixRolesWrite(t *testing.T) {
	platform := newFakePlatform(
		roles.Member{Id: "111", Roles: []roles.RoleId{newPlayer.Id, booster.Id}},
		roles.Member{Id: "112", Roles: nil},
		roles.Member{Id: "113", Roles: []roles.RoleId{signup.Id}},
	)
	platform.fail["111"] = true
	bot, _ := newTestBot(t, platform, &fakeSource{})
	saveSnapshot(t, bot, roles.RequestedRoles{
		"111": roles.NewRoleSet("League Player"),
		"112": roles.NewRoleSet("Signup for League", "League Mod"),
		"113": roles.NewRoleSet("League Player"),
	})

	report := joined(bot.Handle(command("!fix_roles write=true")))

	assert.Contains(t, report, "Fixed roles of 2 members, 1 with errors")
	assert.Contains(t, report, "`111`: +League Player, -New League Player (add failed")
	assert.Contains(t, report, "`112`: +League Mod, +Signup for League (done)")
	assert.Contains(t, report, "`113`: +League Player, -Signup for League (done)")
	for _, call := range platform.editCalls() {
		assert.Equal(t, "operator (42) via fix_roles", call.reason)
	}

	// Everything but the failing member is in sync now
	delete(platform.fail, "111")
	report = joined(bot.Handle(command("!mismatching_roles")))
	assert.Contains(t, report, "**1 members with mismatching roles**")
	assert.Contains(t, report, "`111`")
	assert.NotContains(t, report, "`112`")

	bot.Handle(command("!fix_roles write=true"))
	assert.Contains(t, joined(bot.Handle(command("!mismatching_roles"))), "All requested roles match")
	guild, _ := platform.Guild(context.Background())
	assert.Contains(t, guild.Members["111"].Roles, booster.Id)
}

func TestUpdateRequestedRolesAfterQuit(t *testing.T) {
	source := &fakeSource{}
	bot, _ := newTestBot(t, newFakePlatform(), source)
	bot.Handle(command("!quit"))

	responses := texts(bot.Handle(command("!update_requested_roles")))

	assert.Equal(t, []string{"Shutting down, try again once the bot is back"}, responses)
	assert.Equal(t, int32(0), bot.tasks.Inflight())
}

func TestQuit(t *testing.T) {
	bot, sender := newTestBot(t, newFakePlatform(), &fakeSource{})

	responses := bot.Handle(command("!quit"))

	assert.Empty(t, responses)
	assert.Equal(t, []string{"Bye"}, sender.sent())
	select {
	case <-bot.ctx.Done():
	default:
		t.Fatal("context still alive after quit")
	}
}
