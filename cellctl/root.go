package cellctl

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

// RootCmd is the base command when cellctl is called without a
// subcommand.
var RootCmd = &cobra.Command{
	Use:   "cellctl",
	Short: "administer an entrycell registry",
	Long: fmt.Sprintf(`cellctl (v%s)

A small administrative client over an entrycell registry: put, get,
remove, and inspect keys backed by a file or SQLite store.`, version),
}

var cfg Config

// Execute runs RootCmd, whose subcommands are added in init. Called once
// by main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().String("config", "", "path to a cell.hujson config file (default: ./cell.hujson if present)")
	RootCmd.PersistentFlags().String("store-backend", "", "persistent store backend: file | sqlite")
	RootCmd.PersistentFlags().String("store-dir", "", "directory for the file-backed persistent store")
	RootCmd.PersistentFlags().String("store-dsn", "", "SQLite DSN for the persistent store, when store-backend=sqlite")
	RootCmd.PersistentFlags().String("swap-backend", "", "swap tier backend: sqlite | memory")
	RootCmd.PersistentFlags().String("swap-dsn", "", "SQLite DSN for the swap tier, when swap-backend=sqlite")
	RootCmd.PersistentFlags().Int("capacity", 0, "registry capacity (entries)")
	RootCmd.PersistentFlags().Int("shards", 0, "registry shard count (0 = auto)")
	RootCmd.PersistentFlags().String("policy", "", "eviction policy: lru | 2q")
	RootCmd.PersistentFlags().Bool("conflict-enabled", false, "enable DR conflict resolution on atomic updates")
	RootCmd.PersistentFlags().Duration("ttl-sweep-interval", 0, "eager TTL sweep interval (0 = use default)")

	_ = viper.BindPFlags(RootCmd.PersistentFlags())

	RootCmd.AddCommand(putCmd, getCmd, delCmd, statsCmd, serveCmd)
}

// initConfig layers configuration: DefaultConfig < cell.hujson <
// .env/.env.local < CELLCTL_* environment < CLI flags (highest wins, via
// viper's own precedence once flags are bound).
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("cellctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cfg = DefaultConfig()

	explicit, _ := RootCmd.PersistentFlags().GetString("config")
	path, mustExist := resolveConfigPath(".", explicit)
	loaded, err := LoadConfigFile(cfg, path, mustExist)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg = loaded

	if v := viper.GetString("store-backend"); v != "" {
		cfg.StoreBackend = v
	}
	if v := viper.GetString("store-dir"); v != "" {
		cfg.StoreDir = v
	}
	if v := viper.GetString("store-dsn"); v != "" {
		cfg.StoreDSN = v
	}
	if v := viper.GetString("swap-backend"); v != "" {
		cfg.SwapBackend = v
	}
	if v := viper.GetString("swap-dsn"); v != "" {
		cfg.SwapDSN = v
	}
	if v := viper.GetInt("capacity"); v != 0 {
		cfg.Capacity = v
	}
	if v := viper.GetInt("shards"); v != 0 {
		cfg.Shards = v
	}
	if v := viper.GetString("policy"); v != "" {
		cfg.Policy = v
	}
	if viper.GetBool("conflict-enabled") {
		cfg.ConflictEnabled = true
	}
	if v := viper.GetDuration("ttl-sweep-interval"); v != 0 {
		cfg.TTLSweepInterval = v
	}
}
