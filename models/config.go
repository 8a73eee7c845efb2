package models

// DhashConfig represents the dhash section merged from config/dhash.json.
type DhashConfig struct {
	DBPath          string `json:"db_path" mapstructure:"db_path"`
	MaxAttachmentKB int64  `json:"max_attachment_kb" mapstructure:"max_attachment_kb"`
	AllowedURLs     string `json:"allowed_urls" mapstructure:"allowed_urls"`
}

// CommandsConfig represents the commands section of config.yaml.
type CommandsConfig struct {
	Auth AuthConfig `json:"auth" mapstructure:"auth"`
}

// AuthConfig holds the permission lists used by the command dispatcher.
type AuthConfig struct {
	Developers  []string `json:"developers" mapstructure:"developers"`
	AdminsRoles []string `json:"admins_roles" mapstructure:"admins_roles"`
	Guest       []string `json:"guest" mapstructure:"guest"`
}
