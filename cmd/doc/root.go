package doc

import (
	"github.com/ValentinKolb/dTxn/cmd/util"
	"github.com/ValentinKolb/dTxn/lib/txn"
	"github.com/ValentinKolb/dTxn/rpc/common"
	"github.com/ValentinKolb/dTxn/rpc/transport"
	"github.com/ValentinKolb/dTxn/rpc/transport/http"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cli")

var (
	clientTransport transport.IDocClientTransport
	txnConfig       txn.Config

	// DocCommands represents the document command group
	DocCommands = &cobra.Command{
		Use:                "doc",
		Short:              "Run document transactions against a dTxn or CouchDB server",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add connection and transaction flags
	util.SetupClientFlags(DocCommands)

	// Add subcommands
	DocCommands.AddCommand(getCmd)
	DocCommands.AddCommand(putCmd)
	DocCommands.AddCommand(updateCmd)
	DocCommands.AddCommand(mapCmd)
	DocCommands.AddCommand(delCmd)
	DocCommands.AddCommand(perfTestCmd)
}

// setupClient connects the http transport and prepares the transaction config
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	clientTransport = http.NewHttpClientTransport()
	if err := clientTransport.Connect(*util.GetClientConfig()); err != nil {
		return err
	}

	txnConfig = txn.DefaultConfig().With(util.GetTxnOptions()...).With(
		txn.WithTransport(clientTransport),
		txn.WithObserver(func(ev txn.Event) {
			Logger.Debugf("%s", ev)
		}),
	)
	return nil
}

func closeClient(_ *cobra.Command, _ []string) error {
	if clientTransport == nil {
		return nil
	}
	return clientTransport.Close()
}
