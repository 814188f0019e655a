package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// The part of the discord session used to reply
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type ResponseString struct {
	string
}
type ResponseEmbed struct {
	discordgo.MessageEmbed
}

type Response interface {
	Send(channelid string, sender Sender)
}

func (response ResponseString) Send(channelid string, sender Sender) {
	if _, err := sender.ChannelMessageSend(channelid, response.string); err != nil {
		log.Error().Err(err).Str("channel", channelid).Msg("Could not send message")
	}
}

func (response ResponseEmbed) Send(channelid string, sender Sender) {
	if _, err := sender.ChannelMessageSendEmbed(channelid, &response.MessageEmbed); err != nil {
		log.Error().Err(err).Str("channel", channelid).Msg("Could not send embed")
	}
}

func sendResponses(sender Sender, channelid string, responses []Response) {
	for _, response := range responses {
		response.Send(channelid, sender)
	}
}
