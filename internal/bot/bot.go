package bot

import (
	"context"
	"fmt"
	"time"

	"dominionbot/internal/roles"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Source of the requested roles, usually the league sheet
type RequestedRolesSource interface {
	GetRequestedRoles(ctx context.Context) (roles.RequestedRoles, error)
}

type Options struct {
	Token       string
	GuildId     string
	Prefix      string
	Parallelism int
	Vocabulary  roles.Vocabulary
	// How long shutdown waits for background fetches
	ShutdownTimeout time.Duration
}

// A message addressed to the bot, stripped of the discordgo types
type Incoming struct {
	ChannelId  string
	GuildId    string
	AuthorId   string
	AuthorName string
	Content    string
}

type Bot struct {
	options  Options
	database DatabaseBot
	source   RequestedRolesSource
	platform Platform
	sender   Sender
	tasks    Tasks
	ctx      context.Context
	quit     context.CancelFunc
	now      func() time.Time
}

func NewBot(options Options, database DatabaseBot, source RequestedRolesSource) *Bot {

	if options.Prefix == "" {
		options.Prefix = DefaultPrefix
	}
	if options.Vocabulary == nil {
		options.Vocabulary = roles.DefaultVocabulary
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = time.Minute
	}

	return &Bot{
		options:  options,
		database: database,
		source:   source,
		now:      time.Now,
	}
}

// Connect to discord and serve commands until ctx is done or someone quits
func (bot *Bot) Run(ctx context.Context) error {

	// Create session
	discord, err := discordgo.New("Bot " + bot.options.Token)
	if err != nil {
		return fmt.Errorf("could not create discord session: %w", err)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

	bot.attach(ctx, newDiscordPlatform(discord, bot.options.GuildId), discord)
	defer bot.quit()

	// Event handlers
	discord.AddHandler(bot.Ready)
	discord.AddHandler(bot.Receive)

	// Open session
	if err := discord.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	defer discord.Close()

	log.Info().Str("guild", bot.options.GuildId).Msg("Waiting for commands")
	<-bot.ctx.Done()

	log.Info().Int32("tasks", bot.tasks.Inflight()).Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), bot.options.ShutdownTimeout)
	defer cancel()
	if err := bot.tasks.Wait(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Gave up waiting for background tasks")
	}
	return nil
}

// Wire the bot to a platform and a sender. Commands run under ctx until quit
func (bot *Bot) attach(ctx context.Context, platform Platform, sender Sender) {
	bot.ctx, bot.quit = context.WithCancel(ctx)
	bot.platform = platform
	bot.sender = sender
}

func (bot *Bot) Ready(discord *discordgo.Session, ready *discordgo.Ready) {
	log.Info().Msg(fmt.Sprintf("We have logged in as %s", ready.User.String()))
}

func (bot *Bot) Receive(discord *discordgo.Session, message *discordgo.MessageCreate) {

	// Reject my own messages
	if message.Author == nil || message.Author.ID == discord.State.User.ID {
		return
	}

	in := Incoming{
		ChannelId:  message.ChannelID,
		GuildId:    message.GuildID,
		AuthorId:   message.Author.ID,
		AuthorName: message.Author.Username,
		Content:    message.Content,
	}
	sendResponses(bot.sender, in.ChannelId, bot.Handle(in))
}

// Parse the input provided and call the appropriate function
func (bot *Bot) Handle(in Incoming) []Response {

	// Ignore private messages and other servers
	if in.GuildId != bot.options.GuildId {
		log.Debug().Str("guild", in.GuildId).Msg("Ignoring message from another guild")
		return nil
	}

	parseResult := Parse(bot.options.Prefix, in.Content)
	switch parseResult.parseid {
	case PARSEID_NO_BOT_PREFIX:
		return nil
	case PARSEID_OK:
		log.Info().Str("command", commandNames[parseResult.command]).Str("author", in.AuthorName).Str("author_id", in.AuthorId).Str("guild", in.GuildId).Msg("Command understood")
		switch parseResult.command {
		case COMMAND_HELLO:
			return bot.hello(in, parseResult.arguments.(MemberArgument))
		case COMMAND_ADDROLE:
			return bot.addRole(in, parseResult.arguments.(MemberRoleArguments))
		case COMMAND_REMOVEROLE:
			return bot.removeRole(in, parseResult.arguments.(MemberRoleArguments))
		case COMMAND_UPDATE_REQUESTED_ROLES:
			return bot.updateRequestedRoles(in)
		case COMMAND_MISMATCHING_ROLES:
			return bot.mismatchingRoles(in)
		case COMMAND_FIX_ROLES:
			return bot.fixRoles(in, parseResult.arguments.(WriteArgument))
		case COMMAND_QUIT:
			return bot.quitCommand(in)
		case COMMAND_HELP:
			return HelpMessage(bot.options.Prefix)
		default:
			panic(fmt.Sprintf("Command %d is not one of the possible ones", parseResult.command))
		}
	default:
		// The command is invalid input, so it contains an error message
		log.Info().Str("content", in.Content).Str("reason", parseResult.errorMessage).Msg("Wrong input")
		return InputNotValid(parseResult.errorMessage)
	}
}

// Audit log reason naming who asked for a change and through which command
func auditReason(in Incoming, command int) string {
	return fmt.Sprintf("%s (%s) via %s", in.AuthorName, in.AuthorId, commandNames[command])
}
