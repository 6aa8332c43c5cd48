package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/build"
	"github.com/cozy/cozy-autoviews/pkg/config"
	"github.com/cozy/cozy-autoviews/pkg/couchdb/memstore"
	"github.com/cozy/cozy-autoviews/pkg/utils"
	"github.com/cozy/cozy-autoviews/web"
	"github.com/spf13/cobra"
)

var flagMemory bool
var flagEnsureRetries int

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the admin API and listens for HTTP calls",
	Long: `Starts the admin API and listens for HTTP calls
It will accept HTTP requests on localhost:8081 by default.
Use the --port and --host flags to change the listening option.

The design documents of the views declared in the configuration file are
created before accepting connections. The declared views can be queried on
/views/<name>, the health of CouchDB is on /status and the prometheus metrics
on /metrics.

The SIGINT signal will trigger a graceful stop of autoviews: it will wait that
current HTTP requests are finished (in a limit of 2 minutes) before exiting.
`,
	Example: `$ autoviews serve --database my-db
$ autoviews serve --memory`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var store web.Store
		if flagMemory {
			store = memstore.New("autoviews")
		} else {
			client, err := config.CouchClient()
			if err != nil {
				return err
			}
			store = client
		}

		specs := config.Views()
		if len(specs) > 0 {
			ctx := cmd.Context()
			err := utils.RetryWithExpBackoff(ctx, flagEnsureRetries, time.Second, func() error {
				return autoview.EnsureViews(ctx, store, specs...)
			})
			if err != nil {
				return err
			}
		}

		if build.IsDevRelease() {
			fmt.Print(`                           !! DEVELOPMENT RELEASE !!
You are running a development release. Please do not use this binary as your
production server.

`)
		}

		server := web.NewServer(config.ServerAddr(), store, specs)
		fmt.Println("Ready and waiting for connections:")
		server.Start()

		group := utils.NewGroupShutdown(server)
		if cfg := config.GetConfig(); cfg.Redis != nil {
			group = utils.NewGroupShutdown(server, utils.ShutdownFunc(func(ctx context.Context) error {
				fmt.Print("  closing redis client...")
				if err := cfg.Redis.Close(); err != nil {
					fmt.Println("failed: ", err.Error())
					return err
				}
				fmt.Println("ok.")
				return nil
			}))
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-server.Wait():
			return err
		case <-sigs:
			fmt.Println("\nReceived interrupt signal:")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel() // make gometalinter happy
			if err := group.Shutdown(ctx); err != nil {
				return err
			}
			fmt.Println("All settled, bye bye !")
			return nil
		}
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.BoolVar(&flagMemory, "memory", false, "use an in-memory database instead of CouchDB")
	flags.IntVar(&flagEnsureRetries, "ensure-retries", 5, "number of attempts to create the design documents on startup")
	RootCmd.AddCommand(serveCmd)
}
