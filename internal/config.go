package internal

import (
	"fmt"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// ConfigFileVariable names an optional key=value file loaded before the environment is read.
const ConfigFileVariable = "CHAT_CONFIG_FILE"

type Config struct {
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	Host              string        `env:"HOST,default=127.0.0.1"`
	DirectoryPort     int           `env:"DIRECTORY_PORT,default=8000"`
	GroupBasePort     int           `env:"GROUP_BASE_PORT,default=8100"`
	MaxGroups         int           `env:"MAX_GROUPS,default=16"`
	MaxUsers          int           `env:"MAX_USERS,default=32"`
	MaxMembers        int           `env:"MAX_MEMBERS,default=50"`
	ReceiveTimeout    time.Duration `env:"RECEIVE_TIMEOUT,default=250ms"`
	FusionGrace       time.Duration `env:"FUSION_GRACE,default=500ms"`
	ShutdownGrace     time.Duration `env:"SHUTDOWN_GRACE,default=300ms"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	RelayBinPath      string        `env:"RELAY_BIN_PATH"`
	RelayBootWait     time.Duration `env:"RELAY_BOOT_WAIT,default=300ms"`
	JournalDir        string        `env:"JOURNAL_DIR"`
	HistoryLimit      int           `env:"HISTORY_LIMIT,default=5"`
	WordFilter        bool          `env:"WORD_FILTER,default=true"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=30s"`
	DebugPort         int           `env:"DEBUG_PORT,default=8081"`
}

// LoadConfig reads the optional config file then the environment.
// Variables already set in the environment win over the file.
func LoadConfig() (Config, error) {
	if path := os.Getenv(ConfigFileVariable); path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, err
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate rejects values the directory could not run with.
func (c Config) Validate() error {
	switch {
	case c.DirectoryPort <= 0 || c.DirectoryPort > 65535:
		return fmt.Errorf("DIRECTORY_PORT out of range: %d", c.DirectoryPort)
	case c.MaxGroups <= 0 || c.MaxUsers <= 0 || c.MaxMembers <= 0:
		return fmt.Errorf("MAX_GROUPS, MAX_USERS and MAX_MEMBERS must be positive")
	case c.GroupBasePort <= 0 || c.GroupBasePort+c.MaxGroups-1 > 65535:
		return fmt.Errorf("GROUP_BASE_PORT out of range: %d", c.GroupBasePort)
	case c.DirectoryPort >= c.GroupBasePort && c.DirectoryPort < c.GroupBasePort+c.MaxGroups:
		return fmt.Errorf("DIRECTORY_PORT %d overlaps the group ports", c.DirectoryPort)
	case c.ReceiveTimeout <= 0:
		return fmt.Errorf("RECEIVE_TIMEOUT must be positive")
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
