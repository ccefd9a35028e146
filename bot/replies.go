package bot

// Fixed reply strings. Changing these breaks clients that match on
// them, so keep them stable.
const (
	replyUnauthorized    = "Invalid User!"
	replyNotAdmin        = "You are not admin."
	replyUnknownCommand  = "Invalid Command"
	replyUnknownShortcut = "Invalid Shortcut"
	replyNoPrevious      = "No previous message"
	replyImagineUsage    = "Usage: /imagine <prompt>"

	configUsage    = "Usage: /config <usernames|model|prompt|shortcut> [args]"
	usernamesUsage = "Usage: /config usernames <add|remove> <username>"
	shortcutUsage  = "Usage: /config shortcut <add|remove|name> [args]"
)

const greetingText = `Hello! I am a Telegram bot relaying your messages to ChatGPT.

Just type a question and I will answer it. Prefix a message with "+" to continue the previous conversation, or use /retry to ask the last question again.

Try /info to see where I run, and /help for the full command list.`

const helpText = `Commands:
  <text>              ask a question (starts a fresh conversation)
  +<text>             follow up on the previous conversation
  /retry              ask the last question again
  /imagine <prompt>   generate an image from a prompt
  !<name> <text>      expand a configured shortcut
  /config             show or change bot settings
  /info               show instance details
  /help               show this message`
