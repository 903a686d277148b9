package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	log "github.com/sirupsen/logrus"
)

// StackSettings configures the tile stack the benchmark command builds.
type StackSettings struct {
	// Path is the directory tiles are loaded from.
	Path string
	// Size is the maximum number of unpinned tiles the stack retains.
	Size int
	// Format is the tile codec name: "geotiff16" or "hgt".
	Format string
}

// ServerSettings configures the optional introspection server.
type ServerSettings struct {
	Enabled bool
	Port    int
	ApiKey  string
}

// Settings is the full set of configuration values for cmd/turtlebench.
type Settings struct {
	Stack   StackSettings
	Workers int
	Debug   bool
	Server  ServerSettings
}

// Configuration is the process-wide configuration populated by InitConfig.
var Configuration Settings

func setDefaults(v *viper.Viper) {
	v.SetDefault("stack.path", ".")
	v.SetDefault("stack.size", 32)
	v.SetDefault("stack.format", "geotiff16")
	v.SetDefault("workers", 1)
	v.SetDefault("debug", false)
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.apikey", "")
}

// InitConfig loads configuration from an optional file at path, layered under
// environment variables prefixed with AppConfig.EnvPrefix, into Configuration.
// An empty path skips the file layer; a missing file is not an error, a file
// present but malformed is.
func InitConfig(path string, debug bool) error {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(AppConfig.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return fmt.Errorf("reading config %q: %w", path, err)
			}
		}
	}

	Configuration = Settings{
		Stack: StackSettings{
			Path:   v.GetString("stack.path"),
			Size:   v.GetInt("stack.size"),
			Format: v.GetString("stack.format"),
		},
		Workers: v.GetInt("workers"),
		Debug:   debug || v.GetBool("debug"),
		Server: ServerSettings{
			Enabled: v.GetBool("server.enabled"),
			Port:    v.GetInt("server.port"),
			ApiKey:  v.GetString("server.apikey"),
		},
	}

	if Configuration.Stack.Size < 1 {
		return fmt.Errorf("stack.size must be >= 1, got %d", Configuration.Stack.Size)
	}

	return nil
}

// DumpConfig logs the active configuration at debug level, mirroring the
// teacher's startup config dump.
func DumpConfig() {
	log.Debugf("stack.path     = %s", Configuration.Stack.Path)
	log.Debugf("stack.size     = %d", Configuration.Stack.Size)
	log.Debugf("stack.format   = %s", Configuration.Stack.Format)
	log.Debugf("workers        = %d", Configuration.Workers)
	log.Debugf("debug          = %v", Configuration.Debug)
	log.Debugf("server.enabled = %v", Configuration.Server.Enabled)
	log.Debugf("server.port    = %d", Configuration.Server.Port)
}
