package bot

import (
	"context"
	"errors"
	"fmt"

	"dominionbot/internal/common"
	"dominionbot/internal/roles"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Page size of the guild members endpoint
const membersPerRequest = 1000

// What the commands need from the chat platform for the managed guild
type Platform interface {
	Guild(ctx context.Context) (roles.Guild, error)
	roles.RoleEditor
}

type discordPlatform struct {
	session *discordgo.Session
	guildId string
}

func newDiscordPlatform(session *discordgo.Session, guildId string) *discordPlatform {
	return &discordPlatform{session: session, guildId: guildId}
}

func (platform *discordPlatform) Guild(ctx context.Context) (roles.Guild, error) {

	stopwatch := common.NewStopwatch()
	guild := roles.Guild{Id: platform.guildId, Members: map[roles.MemberId]roles.Member{}}

	guildRoles, err := platform.session.GuildRoles(platform.guildId, discordgo.WithContext(ctx))
	if err != nil {
		return roles.Guild{}, fmt.Errorf("could not get roles of guild %s: %w", platform.guildId, err)
	}
	for _, role := range guildRoles {
		guild.Roles = append(guild.Roles, roles.Role{Id: roles.RoleId(role.ID), Name: role.Name})
	}

	after := ""
	for {
		members, err := platform.session.GuildMembers(platform.guildId, after, membersPerRequest, discordgo.WithContext(ctx))
		if err != nil {
			return roles.Guild{}, fmt.Errorf("could not get members of guild %s: %w", platform.guildId, err)
		}
		for _, member := range members {
			if member.User == nil {
				continue
			}
			ids := make([]roles.RoleId, len(member.Roles))
			for i, id := range member.Roles {
				ids[i] = roles.RoleId(id)
			}
			guild.Members[roles.MemberId(member.User.ID)] = roles.Member{
				Id:       roles.MemberId(member.User.ID),
				Username: member.User.Username,
				Roles:    ids,
			}
			after = member.User.ID
		}
		if len(members) < membersPerRequest {
			break
		}
	}

	log.Debug().Int("roles", len(guild.Roles)).Int("members", len(guild.Members)).Dur("elapsed", stopwatch.Elapsed()).Msg("Loaded guild")
	return guild, nil
}

// Discord assigns roles one at a time. Every role is attempted and the
// failures are joined
func (platform *discordPlatform) AddRoles(ctx context.Context, memberId roles.MemberId, roleIds []roles.RoleId, reason string) error {
	var errs []error
	for _, roleId := range roleIds {
		err := platform.session.GuildMemberRoleAdd(platform.guildId, string(memberId), string(roleId),
			discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
		if err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", roleId, err))
		}
	}
	return errors.Join(errs...)
}

func (platform *discordPlatform) RemoveRoles(ctx context.Context, memberId roles.MemberId, roleIds []roles.RoleId, reason string) error {
	var errs []error
	for _, roleId := range roleIds {
		err := platform.session.GuildMemberRoleRemove(platform.guildId, string(memberId), string(roleId),
			discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
		if err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", roleId, err))
		}
	}
	return errors.Join(errs...)
}
