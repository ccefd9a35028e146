package bot

import (
	"strings"
	"unicode"
)

type IntentKind int

const (
	IntentChat IntentKind = iota
	IntentStart
	IntentInfo
	IntentHelp
	IntentRetry
	IntentConfig
	IntentImagine
	IntentShortcut
	IntentUnknown
)

// Intent is the classified form of one incoming message. Name is only
// set for shortcuts; Arg carries the remaining text after the command
// word.
type Intent struct {
	Kind     IntentKind
	Name     string
	Arg      string
	FollowOn bool
}

// ParseIntent classifies a raw message. Classification never fails;
// unrecognized slash commands map to IntentUnknown and anything else is
// treated as chat text.
func ParseIntent(text string) Intent {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "/") {
		word, rest := splitCommand(trimmed)
		switch normalizeSlashCommand(word) {
		case "/start":
			if rest == "" {
				return Intent{Kind: IntentStart}
			}
		case "/info":
			if rest == "" {
				return Intent{Kind: IntentInfo}
			}
		case "/help":
			if rest == "" {
				return Intent{Kind: IntentHelp}
			}
		case "/retry":
			if rest == "" {
				return Intent{Kind: IntentRetry}
			}
		case "/config":
			return Intent{Kind: IntentConfig, Arg: rest}
		case "/imagine":
			return Intent{Kind: IntentImagine, Arg: rest}
		}
		return Intent{Kind: IntentUnknown}
	}

	if strings.HasPrefix(trimmed, "!") {
		name, rest := splitCommand(strings.TrimPrefix(trimmed, "!"))
		return Intent{Kind: IntentShortcut, Name: name, Arg: rest}
	}

	if strings.HasPrefix(trimmed, "+") {
		return Intent{
			Kind:     IntentChat,
			Arg:      strings.TrimSpace(strings.TrimPrefix(trimmed, "+")),
			FollowOn: true,
		}
	}

	return Intent{Kind: IntentChat, Arg: trimmed}
}

// splitCommand separates the first whitespace-delimited word from the
// rest of the text.
func splitCommand(text string) (word, rest string) {
	idx := strings.IndexFunc(text, unicode.IsSpace)
	if idx < 0 {
		return text, ""
	}
	return text[:idx], strings.TrimSpace(text[idx:])
}

// normalizeSlashCommand strips the @botname suffix Telegram appends in
// group chats.
func normalizeSlashCommand(word string) string {
	if at := strings.Index(word, "@"); at > 0 {
		return word[:at]
	}
	return word
}
