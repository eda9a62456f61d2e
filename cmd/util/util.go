package util

import (
	"strings"
	"time"

	"github.com/ValentinKolb/dTxn/lib/txn"
	"github.com/ValentinKolb/dTxn/rpc/common"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (e.g. DTXN_LOG_LEVEL)
	EnvPrefix = "dtxn"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read DTXN_* environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// --------------------------------------------------------------------------
// Client flags
// --------------------------------------------------------------------------

// SetupClientFlags adds the connection and transaction flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single http request"))

	key = "endpoints"
	cmd.PersistentFlags().String(key, "http://localhost:5984", WrapString("The address of the document server. Multiple endpoints can be specified as a comma-separated list and are used round-robin"))

	key = "conn-per-endpoint"
	cmd.PersistentFlags().Int(key, 10, WrapString("Idle connections kept per endpoint"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request that failed on the transport level"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "db"
	cmd.PersistentFlags().String(key, "db", WrapString("The database the documents live in"))

	key = "create"
	cmd.PersistentFlags().Bool(key, false, WrapString("Create the document if it does not exist"))

	key = "timestamps"
	cmd.PersistentFlags().Bool(key, false, WrapString("Maintain the created_at and updated_at fields"))

	key = "max-tries"
	cmd.PersistentFlags().Int(key, 5, WrapString("How many times a transaction is tried before giving up on conflicts"))

	key = "delay"
	cmd.PersistentFlags().Duration(key, 100*time.Millisecond, WrapString("Base of the exponential backoff between tries (0 retries immediately)"))

	key = "max-delay"
	cmd.PersistentFlags().Duration(key, 0, WrapString("Upper bound of the backoff (0 = unbounded)"))

	key = "txn-timeout"
	cmd.PersistentFlags().Duration(key, 15*time.Second, WrapString("Timeout of a single run of the operation"))
}

// GetClientConfig reads the transport configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond:          viper.GetInt("timeout"),
		RetryCount:             viper.GetInt("retries"),
		Endpoints:              strings.Split(viper.GetString("endpoints"), ","),
		ConnectionsPerEndpoint: viper.GetInt("conn-per-endpoint"),
	}
}

// GetDatabase returns the configured database name
func GetDatabase() string {
	return viper.GetString("db")
}

// GetTxnOptions reads the transaction options from viper.
// Documents are addressed relative to the transport's endpoints.
func GetTxnOptions() []txn.Option {
	return []txn.Option{
		txn.WithCouch("/", GetDatabase()),
		txn.WithCreate(viper.GetBool("create")),
		txn.WithTimestamps(viper.GetBool("timestamps")),
		txn.WithMaxTries(viper.GetInt("max-tries")),
		txn.WithDelay(viper.GetDuration("delay")),
		txn.WithMaxDelay(viper.GetDuration("max-delay")),
		txn.WithTimeout(viper.GetDuration("txn-timeout")),
	}
}
