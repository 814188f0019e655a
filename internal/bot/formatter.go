package bot

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"dominionbot/internal/roles"
	"dominionbot/internal/sheets"

	"github.com/bwmarrin/discordgo"
)

// Use "teal" color for the bot
const color int = 0x008080

// Discord rejects messages longer than this
const messageLimit = 2000

func InputNotValid(errorMessage string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Input not valid: \n> %s", errorMessage)}}
}

func HelpMessage(prefix string) []Response {

	embed := discordgo.MessageEmbed{Title: "Commands available", Color: color}
	field := func(usage string, description string) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("`%s%s`", prefix, usage),
			Value:  description,
			Inline: false,
		})
	}
	field("hello [member]", "Say hello")
	field("addrole <member> <role>", "Give a role to a member")
	field("removerole <member> <role>", "Take a role from a member")
	field("update_requested_roles", "Fetch the roles requested in the league sheet and keep them for the other commands")
	field("mismatching_roles", "Show the members whose league roles differ from the last fetched requests")
	field("fix_roles [write=false]", "Preview the role fixes, or apply them with `write=true`")
	field("quit", "Shut the bot down")
	field("help", "Print the usage of the different commands")
	return []Response{ResponseEmbed{embed}}
}

func Hello(member roles.MemberId) []Response {
	return []Response{ResponseString{fmt.Sprintf("Hello <@%s>~", member)}}
}

func Bye() []Response {
	return []Response{ResponseString{"Bye"}}
}

func ShuttingDown() []Response {
	return []Response{ResponseString{"Shutting down, try again once the bot is back"}}
}

func MemberDoesNotExist(member roles.MemberId) []Response {
	return []Response{ResponseString{fmt.Sprintf("Member `%s` is not in this server", member)}}
}

func RoleDoesNotExist(role RoleRef) []Response {
	return []Response{ResponseString{fmt.Sprintf("Role `%s` does not exist in this server", role)}}
}

func RoleAdded(member roles.MemberId, role roles.Role) []Response {
	return []Response{ResponseString{fmt.Sprintf("Gave role `%s` to `%s`", role.Name, member)}}
}

func RoleRemoved(member roles.MemberId, role roles.Role) []Response {
	return []Response{ResponseString{fmt.Sprintf("Took role `%s` from `%s`", role.Name, member)}}
}

func RoleChangeFailed(err error) []Response {
	return []Response{ResponseString{fmt.Sprintf("Discord refused the change: %v", err)}}
}

func GuildUnavailable(err error) []Response {
	return []Response{ResponseString{fmt.Sprintf("Could not read the server members and roles: %v", err)}}
}

func SnapshotNotFound(prefix string) []Response {
	return []Response{ResponseString{fmt.Sprintf("No requested roles have been fetched yet, run `%supdate_requested_roles` first", prefix)}}
}

func SnapshotUnavailable(err error) []Response {
	return []Response{ResponseString{fmt.Sprintf("Could not load the requested roles: %v", err)}}
}

func FetchStarted(task *Task) []Response {
	return []Response{ResponseString{fmt.Sprintf("Started fetching requested roles (task `%s`)", task.Id)}}
}

func FetchFinished(task *Task, members int) []Response {
	return []Response{ResponseString{fmt.Sprintf("Loaded requested roles for %d members (task `%s`)", members, task.Id)}}
}

func FetchFailed(task *Task, err error) []Response {
	var mismatch *sheets.SchemaMismatchError
	var transport *sheets.TransportError
	switch {
	case errors.As(err, &mismatch):
		return []Response{ResponseString{fmt.Sprintf("The sheet layout changed, nothing was saved (task `%s`): %v", task.Id, mismatch)}}
	case errors.As(err, &transport):
		return []Response{ResponseString{fmt.Sprintf("Could not reach the sheet after %d attempts (task `%s`): %v", transport.Attempts, task.Id, transport.Err)}}
	default:
		return []Response{ResponseString{fmt.Sprintf("Could not fetch requested roles (task `%s`): %v", task.Id, err)}}
	}
}

// How old the snapshot is, rounded to the minute
func SnapshotAge(snapshot Snapshot, now time.Time) string {
	age := now.Sub(snapshot.FetchedAt).Truncate(time.Minute)
	if age < time.Minute {
		return fmt.Sprintf("Requested roles fetched at %s (less than a minute ago)", snapshot.FetchedAt.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("Requested roles fetched at %s (%s ago)", snapshot.FetchedAt.UTC().Format(time.RFC3339), age)
}

func memberLabel(id roles.MemberId, username string) string {
	if username == "" {
		return fmt.Sprintf("`%s`", id)
	}
	return fmt.Sprintf("`%s` %s", id, username)
}

func DiffLine(diff roles.RoleDiff) string {
	changes := make([]string, 0, len(diff.ToAdd)+len(diff.ToRemove))
	for _, role := range diff.ToAdd {
		changes = append(changes, "+"+role.Name)
	}
	for _, role := range diff.ToRemove {
		changes = append(changes, "-"+role.Name)
	}
	return fmt.Sprintf("%s: %s", memberLabel(diff.MemberId, diff.Username), strings.Join(changes, ", "))
}

// Lines for the members that could not be diffed, in member order
func problemLines(reconciliation roles.Reconciliation) []string {
	type problem struct {
		member roles.MemberId
		line   string
	}
	problems := []problem{}
	for _, missing := range reconciliation.Missing {
		problems = append(problems, problem{missing.MemberId, fmt.Sprintf("%s: not in this server", memberLabel(missing.MemberId, ""))})
	}
	for _, unresolved := range reconciliation.Unresolved {
		problems = append(problems, problem{unresolved.MemberId, fmt.Sprintf("%s: role `%s` does not exist in this server", memberLabel(unresolved.MemberId, ""), unresolved.Role)})
	}
	slices.SortStableFunc(problems, func(a, b problem) int {
		return roles.CompareMemberIds(a.member, b.member)
	})
	lines := make([]string, len(problems))
	for i, problem := range problems {
		lines[i] = problem.line
	}
	return lines
}

func MismatchReport(snapshot Snapshot, reconciliation roles.Reconciliation, now time.Time) []Response {
	return diffReport(snapshot, reconciliation.Ordered(), reconciliation, now)
}

// Report of a dry run: the changes the executor would have made
func DryRunReport(snapshot Snapshot, report roles.ExecutionReport, reconciliation roles.Reconciliation, now time.Time) []Response {
	diffs := make([]roles.RoleDiff, len(report.Outcomes))
	for i, outcome := range report.Outcomes {
		diffs[i] = outcome.Diff
	}
	preview := diffReport(snapshot, diffs, reconciliation, now)
	return append([]Response{ResponseString{"Dry run, no changes were made. Run with `write=true` to apply them."}}, preview...)
}

func diffReport(snapshot Snapshot, diffs []roles.RoleDiff, reconciliation roles.Reconciliation, now time.Time) []Response {

	lines := []string{SnapshotAge(snapshot, now)}
	if len(diffs) == 0 {
		lines = append(lines, "All requested roles match")
	} else {
		lines = append(lines, fmt.Sprintf("**%d members with mismatching roles**", len(diffs)))
		for _, diff := range diffs {
			lines = append(lines, DiffLine(diff))
		}
	}
	if problems := problemLines(reconciliation); len(problems) > 0 {
		lines = append(lines, fmt.Sprintf("**%d requests could not be checked**", len(problems)))
		lines = append(lines, problems...)
	}
	return chunk(lines)
}

func outcomeLine(outcome roles.Outcome) string {
	line := DiffLine(outcome.Diff)
	if !outcome.Failed() {
		return line + " (done)"
	}
	failures := make([]string, len(outcome.Errors))
	for i, failure := range outcome.Errors {
		failures[i] = fmt.Sprintf("%s failed: %v", failure.Operation, failure.Err)
	}
	return fmt.Sprintf("%s (%s)", line, strings.Join(failures, "; "))
}

func ExecutionReportMessage(report roles.ExecutionReport, reconciliation roles.Reconciliation) []Response {

	lines := []string{}
	if len(report.Outcomes) == 0 {
		lines = append(lines, "Nothing to fix, all requested roles match")
	} else {
		lines = append(lines, fmt.Sprintf("**Fixed roles of %d members, %d with errors**", len(report.Outcomes)-report.Failures(), report.Failures()))
		for _, outcome := range report.Outcomes {
			lines = append(lines, outcomeLine(outcome))
		}
	}
	if problems := problemLines(reconciliation); len(problems) > 0 {
		lines = append(lines, fmt.Sprintf("**%d requests were skipped**", len(problems)))
		lines = append(lines, problems...)
	}
	return chunk(lines)
}

// Pack lines into as few messages as the length limit allows
func chunk(lines []string) []Response {
	responses := []Response{}
	current := ""
	for _, line := range lines {
		line = truncate(line, messageLimit)
		if current != "" && len(current)+1+len(line) > messageLimit {
			responses = append(responses, ResponseString{current})
			current = ""
		}
		if current == "" {
			current = line
		} else {
			current += "\n" + line
		}
	}
	if current != "" {
		responses = append(responses, ResponseString{current})
	}
	return responses
}

// Cut line to at most limit bytes without splitting a rune
func truncate(line string, limit int) string {
	if len(line) <= limit {
		return line
	}
	cut := limit - len("...")
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + "..."
}
