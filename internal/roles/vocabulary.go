package roles

import "slices"

// Ordered list of role names the bot is allowed to manage.
// The order is the order of the role columns in the sheet
type Vocabulary []string

var DefaultVocabulary = Vocabulary{
	"Signup for League",
	"Late Signup for League",
	"New League Player",
	"League Player",
	"Current League Champion",
	"Former League Champion",
	"League Mod",
	"Proper League Division",
}

func (vocabulary Vocabulary) Contains(name string) bool {
	return slices.Contains(vocabulary, name)
}
