package bot

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// handleConfig serves the /config surface. Reads are open to any
// authorized caller; mutations re-check admin on every call so a
// demoted admin loses access immediately.
func (d *Dispatcher) handleConfig(caller, args string) string {
	sub, rest := splitCommand(args)
	switch sub {
	case "":
		return d.configDump()
	case "usernames":
		return d.configUsernames(caller, rest)
	case "model":
		return d.configModel(caller, rest)
	case "prompt":
		return d.configPrompt(caller, rest)
	case "shortcut":
		return d.configShortcut(caller, rest)
	default:
		return configUsage
	}
}

func (d *Dispatcher) configDump() string {
	cfg := d.config.Get()
	// The webhook secret is deliberately absent from the dump.
	dump := struct {
		Model     string            `yaml:"model"`
		Prompt    string            `yaml:"prompt"`
		Admin     string            `yaml:"admin"`
		Usernames []string          `yaml:"usernames"`
		Shortcuts map[string]string `yaml:"shortcuts"`
	}{
		Model:     cfg.Model,
		Prompt:    cfg.Prompt,
		Admin:     cfg.Admin,
		Usernames: d.allow.Names(),
		Shortcuts: d.shortcuts.Entries(),
	}
	b, err := yaml.Marshal(dump)
	if err != nil {
		return fmt.Sprintf("config dump failed: %s", err.Error())
	}
	return strings.TrimSpace(string(b))
}

func (d *Dispatcher) configUsernames(caller, rest string) string {
	if rest == "" {
		names := d.allow.Names()
		if len(names) == 0 {
			return "No usernames set; everyone may talk to me."
		}
		return strings.Join(names, "\n")
	}

	op, name := splitCommand(rest)
	if name == "" {
		return usernamesUsage
	}
	if !d.config.IsAdmin(caller) {
		return replyNotAdmin
	}
	switch op {
	case "add":
		d.allow.Add(name)
		d.persistState()
		return fmt.Sprintf("Added %s", name)
	case "remove":
		d.allow.Remove(name)
		d.persistState()
		return fmt.Sprintf("Removed %s", name)
	default:
		return usernamesUsage
	}
}

func (d *Dispatcher) configModel(caller, rest string) string {
	if rest == "" {
		return d.config.Get().Model
	}
	if !d.config.IsAdmin(caller) {
		return replyNotAdmin
	}
	d.config.SetModel(rest)
	d.persistState()
	return "Model set to " + rest
}

func (d *Dispatcher) configPrompt(caller, rest string) string {
	if rest == "" {
		prompt := d.config.Get().Prompt
		if prompt == "" {
			return "(empty)"
		}
		return prompt
	}
	if !d.config.IsAdmin(caller) {
		return replyNotAdmin
	}
	d.config.SetPrompt(rest)
	d.persistState()
	return "Prompt updated."
}

func (d *Dispatcher) configShortcut(caller, rest string) string {
	if rest == "" {
		names := d.shortcuts.Names()
		if len(names) == 0 {
			return "No shortcuts defined."
		}
		return strings.Join(names, "\n")
	}

	op, opRest := splitCommand(rest)
	switch op {
	case "add":
		name, text := splitCommand(opRest)
		if name == "" || text == "" {
			return shortcutUsage
		}
		if !d.config.IsAdmin(caller) {
			return replyNotAdmin
		}
		d.shortcuts.Set(name, text)
		d.persistState()
		return fmt.Sprintf("Shortcut !%s saved", name)
	case "remove":
		name, _ := splitCommand(opRest)
		if name == "" {
			return shortcutUsage
		}
		if !d.config.IsAdmin(caller) {
			return replyNotAdmin
		}
		d.shortcuts.Remove(name)
		d.persistState()
		return fmt.Sprintf("Shortcut !%s removed", name)
	default:
		template, ok := d.shortcuts.Get(op)
		if !ok {
			return replyUnknownShortcut
		}
		return template
	}
}

func (d *Dispatcher) persistState() {
	if d.persist == nil {
		return
	}
	if err := d.persist(); err != nil {
		d.logger.Warn("state_persist_error", "error", err.Error())
	}
}
