package ethanol

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Prefix of environment variables read by "LoadConfig", e.g. ETHANOL_RPC.
const EnvPrefix = "ETHANOL"

/*
Settings shared by command-line tools. Loaded from an optional config file
(YAML, TOML or JSON, chosen by extension) and "ETHANOL_*" environment
variables; the environment wins.
*/
type Config struct {
	Rpc             string            `mapstructure:"rpc"`
	Mnemonic        string            `mapstructure:"mnemonic"`
	Index           uint32            `mapstructure:"index"`
	PollInterval    time.Duration     `mapstructure:"poll_interval"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	Solc            string            `mapstructure:"solc"`
	CompilerOptions map[string]string `mapstructure:"compiler_options"`
	DevPing         bool              `mapstructure:"dev_ping"`
}

func DefaultConfig() Config {
	return Config{
		Rpc:          "http://localhost:8545",
		PollInterval: DefaultPollInterval,
		Solc:         "solc",
		DevPing:      true,
	}
}

/*
Loads the configuration. An empty path reads the environment only. A missing
file is an error when the path is given explicitly.
*/
func LoadConfig(path string) (Config, error) {
	conf := viper.New()
	setConfigDefaults(conf, DefaultConfig())

	conf.SetEnvPrefix(EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	if path != "" {
		conf.SetConfigFile(path)
		err := conf.ReadInConfig()
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config %q", path)
		}
	}

	var out Config
	err := conf.Unmarshal(&out)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}
	return out, nil
}

// Every key needs a default for "AutomaticEnv" to see it during Unmarshal.
func setConfigDefaults(conf *viper.Viper, def Config) {
	conf.SetDefault("rpc", def.Rpc)
	conf.SetDefault("mnemonic", def.Mnemonic)
	conf.SetDefault("index", def.Index)
	conf.SetDefault("poll_interval", def.PollInterval)
	conf.SetDefault("timeout", def.Timeout)
	conf.SetDefault("solc", def.Solc)
	conf.SetDefault("compiler_options", map[string]string{})
	conf.SetDefault("dev_ping", def.DevPing)
}

// Blockchain options matching the configuration.
func (self Config) Options() []Option {
	out := []Option{
		WithPollInterval(self.PollInterval),
		WithTimeout(self.Timeout),
	}
	if !self.DevPing {
		out = append(out, WithoutPinger())
	}
	return out
}

func (self Config) UserOptions() UserOptions {
	return UserOptions{Mnemonic: Mnemonic(self.Mnemonic), Index: self.Index}
}

func (self Config) Compiler() Compiler {
	return Compiler{Solc: self.Solc, Options: self.CompilerOptions}
}
