package bot

import (
	"fmt"
	"regexp"
	"strings"

	"dominionbot/internal/roles"

	"github.com/rs/zerolog/log"
)

const DefaultPrefix string = "!"

const (
	COMMAND_HELLO                  = iota
	COMMAND_ADDROLE                = iota
	COMMAND_REMOVEROLE             = iota
	COMMAND_UPDATE_REQUESTED_ROLES = iota
	COMMAND_MISMATCHING_ROLES      = iota
	COMMAND_FIX_ROLES              = iota
	COMMAND_QUIT                   = iota
	COMMAND_HELP                   = iota
)

var commandNames = map[int]string{
	COMMAND_HELLO:                  "hello",
	COMMAND_ADDROLE:                "addrole",
	COMMAND_REMOVEROLE:             "removerole",
	COMMAND_UPDATE_REQUESTED_ROLES: "update_requested_roles",
	COMMAND_MISMATCHING_ROLES:      "mismatching_roles",
	COMMAND_FIX_ROLES:              "fix_roles",
	COMMAND_QUIT:                   "quit",
	COMMAND_HELP:                   "help",
}

const (
	PARSEID_OK                     = iota
	PARSEID_NO_BOT_PREFIX          = iota
	PARSEID_NO_COMMAND             = iota
	PARSEID_COMMAND_NOT_RECOGNISED = iota
	PARSEID_NO_INPUT               = iota
	PARSEID_NOT_A_MEMBER           = iota
	PARSEID_NOT_A_BOOLEAN          = iota
	PARSEID_TOO_MANY_ARGUMENTS     = iota
)

var errorMessages map[int]string = map[int]string{
	PARSEID_NO_COMMAND:             "No command provided",
	PARSEID_COMMAND_NOT_RECOGNISED: "Command `%s` not recognised",
	PARSEID_NO_INPUT:               "Command `%s` requires a member and a role",
	PARSEID_NOT_A_MEMBER:           "Input `%s` is not a member mention or id",
	PARSEID_NOT_A_BOOLEAN:          "Input `%s` is not `write=true` or `write=false`",
	PARSEID_TOO_MANY_ARGUMENTS:     "Command `%s` takes no arguments",
}

var (
	memberMention = regexp.MustCompile(`^<@!?(\d+)>$`)
	roleMention   = regexp.MustCompile(`^<@&(\d+)>$`)
	snowflake     = regexp.MustCompile(`^\d+$`)
)

// A role given either as a mention (id) or by its name
type RoleRef struct {
	Id   roles.RoleId
	Name string
}

func (ref RoleRef) String() string {
	if ref.Id != "" {
		return fmt.Sprintf("<@&%s>", ref.Id)
	}
	return ref.Name
}

type MemberArgument struct {
	Member roles.MemberId
}

type MemberRoleArguments struct {
	Member roles.MemberId
	Role   RoleRef
}

type WriteArgument struct {
	Write bool
}

type ParseResult struct {
	command      int
	parseid      int
	errorMessage string
	arguments    interface{}
}

func Parse(prefix string, message string) ParseResult {

	// The message has to start with the bot prefix
	if !strings.HasPrefix(message, prefix) {
		log.Debug().Msg("Reject message not intended for the bot")
		return ParseResult{parseid: PARSEID_NO_BOT_PREFIX}
	}

	// Get the command if valid
	words := strings.Fields(message[len(prefix):])
	if len(words) == 0 {
		parseid := PARSEID_NO_COMMAND
		return ParseResult{parseid: parseid, errorMessage: errorMessages[parseid]}
	}
	commandString := words[0]
	words = words[1:]

	noArguments := func(command int) ParseResult {
		if len(words) > 0 {
			parseid := PARSEID_TOO_MANY_ARGUMENTS
			return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
		}
		return ParseResult{command: command, parseid: PARSEID_OK}
	}

	// Match the command
	switch commandString {
	case "hello":
		// hello [member]
		command := COMMAND_HELLO
		if len(words) == 0 {
			return ParseResult{command: command, parseid: PARSEID_OK, arguments: MemberArgument{}}
		}
		member, ok := parseMember(strings.Join(words, ""))
		if !ok {
			return notAMember(command, strings.Join(words, " "))
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: MemberArgument{member}}
	case "addrole":
		// addrole <member> <role>
		return parseMemberRole(COMMAND_ADDROLE, commandString, words)
	case "removerole":
		// removerole <member> <role>
		return parseMemberRole(COMMAND_REMOVEROLE, commandString, words)
	case "update_requested_roles":
		return noArguments(COMMAND_UPDATE_REQUESTED_ROLES)
	case "mismatching_roles":
		return noArguments(COMMAND_MISMATCHING_ROLES)
	case "fix_roles":
		// fix_roles [write=false]
		command := COMMAND_FIX_ROLES
		if len(words) == 0 {
			return ParseResult{command: command, parseid: PARSEID_OK, arguments: WriteArgument{false}}
		}
		write, ok := parseWrite(strings.Join(words, ""))
		if !ok {
			parseid := PARSEID_NOT_A_BOOLEAN
			return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], strings.Join(words, " "))}
		}
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: WriteArgument{write}}
	case "quit":
		return noArguments(COMMAND_QUIT)
	case "help":
		return ParseResult{command: COMMAND_HELP, parseid: PARSEID_OK}
	default:
		parseid := PARSEID_COMMAND_NOT_RECOGNISED
		return ParseResult{parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}
}

func parseMemberRole(command int, commandString string, words []string) ParseResult {

	if len(words) < 2 {
		parseid := PARSEID_NO_INPUT
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}
	member, ok := parseMember(words[0])
	if !ok {
		return notAMember(command, words[0])
	}
	// Everything after the member is the role, names can contain spaces
	roleString := strings.Join(words[1:], " ")
	role := RoleRef{Name: roleString}
	if match := roleMention.FindStringSubmatch(roleString); match != nil {
		role = RoleRef{Id: roles.RoleId(match[1])}
	}
	return ParseResult{command: command, parseid: PARSEID_OK, arguments: MemberRoleArguments{member, role}}
}

func notAMember(command int, word string) ParseResult {
	parseid := PARSEID_NOT_A_MEMBER
	return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], word)}
}

func parseMember(word string) (roles.MemberId, bool) {
	if match := memberMention.FindStringSubmatch(word); match != nil {
		return roles.MemberId(match[1]), true
	}
	if snowflake.MatchString(word) {
		return roles.MemberId(word), true
	}
	return "", false
}

func parseWrite(word string) (bool, bool) {
	switch strings.TrimPrefix(strings.ToLower(word), "write=") {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}
