package state

import "sync"

// Config is the singleton bot configuration. It is filled once at
// process start and mutated afterward only through admin commands.
type Config struct {
	Admin  string `json:"admin"`
	Secret string `json:"secret"`
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ConfigStore guards the Config singleton. Reads are concurrent,
// mutations are serialized.
type ConfigStore struct {
	mu  sync.RWMutex
	cfg Config
}

func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{cfg: cfg}
}

func (s *ConfigStore) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *ConfigStore) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Model = model
}

func (s *ConfigStore) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Prompt = prompt
}

// IsAdmin is an exact string match. An unset admin matches nobody.
func (s *ConfigStore) IsAdmin(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Admin != "" && identity == s.cfg.Admin
}
