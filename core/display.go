package core

// Conversation selects how much of the surrounding thread an embed shows.
type Conversation string

const (
	// ConversationDefault lets the provider decide.
	ConversationDefault Conversation = ""
	// ConversationNone hides the parent thread.
	ConversationNone Conversation = "none"
	// ConversationAll shows the full conversation.
	ConversationAll Conversation = "all"
)

// DisplayOptions are passed through to the widget library.
type DisplayOptions struct {
	Align        string       `yaml:"align"`
	Theme        string       `yaml:"theme"`
	DoNotTrack   bool         `yaml:"doNotTrack"`
	Conversation Conversation `yaml:"-"`
}

// DefaultDisplayOptions mirror what every screen used: centered, light theme,
// do-not-track enabled.
var DefaultDisplayOptions = DisplayOptions{
	Align:      "center",
	Theme:      "light",
	DoNotTrack: true,
}

// WithConversation returns a copy with the conversation mode set.
func (o DisplayOptions) WithConversation(c Conversation) DisplayOptions {
	o.Conversation = c
	return o
}

// Map returns the option object in the shape the widget script expects.
// Empty fields are omitted so the provider applies its defaults.
func (o DisplayOptions) Map() map[string]any {
	m := map[string]any{"dnt": o.DoNotTrack}
	if o.Align != "" {
		m["align"] = o.Align
	}
	if o.Theme != "" {
		m["theme"] = o.Theme
	}
	if o.Conversation != ConversationDefault {
		m["conversation"] = string(o.Conversation)
	}
	return m
}
