package bot

import (
	"context"
	"errors"

	"dominionbot/internal/roles"

	"github.com/rs/zerolog/log"
)

func (bot *Bot) hello(in Incoming, arguments MemberArgument) []Response {
	member := arguments.Member
	if member == "" {
		member = roles.MemberId(in.AuthorId)
	}
	return Hello(member)
}

// Find the target member and role of addrole/removerole
func (bot *Bot) resolveMemberRole(arguments MemberRoleArguments) (roles.Member, roles.Role, []Response) {

	guild, err := bot.platform.Guild(bot.ctx)
	if err != nil {
		log.Error().Err(err).Msg("Could not load guild")
		return roles.Member{}, roles.Role{}, GuildUnavailable(err)
	}
	member, ok := guild.Members[arguments.Member]
	if !ok {
		return roles.Member{}, roles.Role{}, MemberDoesNotExist(arguments.Member)
	}
	var role roles.Role
	if arguments.Role.Id != "" {
		role, ok = guild.RoleById(arguments.Role.Id)
	} else {
		role, ok = guild.RoleByName(arguments.Role.Name)
	}
	if !ok {
		return roles.Member{}, roles.Role{}, RoleDoesNotExist(arguments.Role)
	}
	return member, role, nil
}

func (bot *Bot) addRole(in Incoming, arguments MemberRoleArguments) []Response {

	member, role, responses := bot.resolveMemberRole(arguments)
	if responses != nil {
		return responses
	}
	if err := bot.platform.AddRoles(bot.ctx, member.Id, []roles.RoleId{role.Id}, auditReason(in, COMMAND_ADDROLE)); err != nil {
		log.Warn().Err(err).Str("member", string(member.Id)).Str("role", role.Name).Msg("Could not add role")
		return RoleChangeFailed(err)
	}
	log.Info().Str("member", string(member.Id)).Str("role", role.Name).Msg("Role added")
	return RoleAdded(member.Id, role)
}

func (bot *Bot) removeRole(in Incoming, arguments MemberRoleArguments) []Response {

	member, role, responses := bot.resolveMemberRole(arguments)
	if responses != nil {
		return responses
	}
	if err := bot.platform.RemoveRoles(bot.ctx, member.Id, []roles.RoleId{role.Id}, auditReason(in, COMMAND_REMOVEROLE)); err != nil {
		log.Warn().Err(err).Str("member", string(member.Id)).Str("role", role.Name).Msg("Could not remove role")
		return RoleChangeFailed(err)
	}
	log.Info().Str("member", string(member.Id)).Str("role", role.Name).Msg("Role removed")
	return RoleRemoved(member.Id, role)
}

// Fetch and save in the background. The first reply goes out right away,
// the second one when the fetch is over
func (bot *Bot) updateRequestedRoles(in Incoming) []Response {

	task, err := bot.tasks.Start(bot.ctx, commandNames[COMMAND_UPDATE_REQUESTED_ROLES], func(ctx context.Context, task *Task) error {

		requested, err := bot.source.GetRequestedRoles(ctx)
		if err == nil {
			err = bot.database.SetRequestedRoles(requested, bot.now())
		}
		if err != nil {
			log.Error().Err(err).Str("task", task.Id.String()).Msg("Could not update requested roles")
			sendResponses(bot.sender, in.ChannelId, FetchFailed(task, err))
			return err
		}

		log.Info().Int("members", len(requested)).Str("task", task.Id.String()).Msg("Requested roles updated")
		sendResponses(bot.sender, in.ChannelId, FetchFinished(task, len(requested)))
		return nil
	})
	if err != nil {
		return ShuttingDown()
	}

	return FetchStarted(task)
}

// Load the snapshot and the live guild and diff them
func (bot *Bot) reconcile() (Snapshot, roles.Reconciliation, []Response) {

	snapshot, err := bot.database.GetRequestedRoles()
	if errors.Is(err, ErrSnapshotNotFound) {
		return Snapshot{}, roles.Reconciliation{}, SnapshotNotFound(bot.options.Prefix)
	}
	if err != nil {
		log.Error().Err(err).Msg("Could not load requested roles")
		return Snapshot{}, roles.Reconciliation{}, SnapshotUnavailable(err)
	}

	guild, err := bot.platform.Guild(bot.ctx)
	if err != nil {
		log.Error().Err(err).Msg("Could not load guild")
		return Snapshot{}, roles.Reconciliation{}, GuildUnavailable(err)
	}

	reconciliation := roles.Reconcile(guild, snapshot.RequestedRoles, bot.options.Vocabulary)
	for _, missing := range reconciliation.Missing {
		log.Warn().Str("member", string(missing.MemberId)).Msg("Requested roles for a member not in the guild")
	}
	for _, unresolved := range reconciliation.Unresolved {
		log.Warn().Str("member", string(unresolved.MemberId)).Str("role", unresolved.Role).Msg("Requested role not in the guild")
	}
	log.Info().Int("mismatches", len(reconciliation.Diffs)).Int("missing", len(reconciliation.Missing)).Int("unresolved", len(reconciliation.Unresolved)).Msg("Reconciled requested roles")
	return snapshot, reconciliation, nil
}

func (bot *Bot) mismatchingRoles(in Incoming) []Response {
	snapshot, reconciliation, responses := bot.reconcile()
	if responses != nil {
		return responses
	}
	return MismatchReport(snapshot, reconciliation, bot.now())
}

func (bot *Bot) fixRoles(in Incoming, arguments WriteArgument) []Response {

	snapshot, reconciliation, responses := bot.reconcile()
	if responses != nil {
		return responses
	}
	executor := roles.NewExecutor(bot.platform, bot.options.Parallelism)
	report := executor.Apply(bot.ctx, reconciliation.Ordered(), !arguments.Write, auditReason(in, COMMAND_FIX_ROLES))
	if report.DryRun {
		return DryRunReport(snapshot, report, reconciliation, bot.now())
	}
	return ExecutionReportMessage(report, reconciliation)
}

func (bot *Bot) quitCommand(in Incoming) []Response {
	log.Info().Str("author", in.AuthorName).Msg("Quit requested")
	// Reply before the context goes away
	sendResponses(bot.sender, in.ChannelId, Bye())
	bot.quit()
	return nil
}
