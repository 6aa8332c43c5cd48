package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cozy/cozy-autoviews/pkg/config"
	"github.com/cozy/cozy-autoviews/web/debug"
	weberrors "github.com/cozy/cozy-autoviews/web/errors"
	"github.com/spf13/cobra"
)

var flagDebugTTL time.Duration
var flagDebugDisable bool
var flagDebugStatus bool

var debugCmd = &cobra.Command{
	Use:   "debug <database>",
	Short: "Activate or deactivate the debug logs of a database",
	Long: `
autoviews debug asks the running server to print the debug logs of the given
database, even if the log level is higher. The debug mode ends after the ttl.
`,
	Example: `$ autoviews debug my-db --ttl 1h
$ autoviews debug my-db --status
$ autoviews debug my-db --disable`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cmd.Usage()
		}
		db := args[0]
		u := url.URL{
			Scheme: "http",
			Host:   config.ServerAddr(),
			Path:   "/debug/" + db,
		}
		method := http.MethodPost
		switch {
		case flagDebugDisable:
			method = http.MethodDelete
		case flagDebugStatus:
			method = http.MethodGet
		default:
			u.RawQuery = url.Values{"ttl": {flagDebugTTL.String()}}.Encode()
		}

		var status debug.Status
		err := adminRequest(cmd.Context(), method, u.String(), &status)
		w := cmd.OutOrStdout()
		switch {
		case flagDebugStatus && isNotFound(err):
			fmt.Fprintf(w, "Debug mode is disabled on %s\n", db)
			return nil
		case err != nil:
			return err
		case flagDebugDisable:
			fmt.Fprintf(w, "Debug mode disabled on %s\n", db)
		case flagDebugStatus:
			fmt.Fprintf(w, "Debug mode enabled on %s until %s\n", db, status.ExpiresAt.Format(time.RFC3339))
		default:
			fmt.Fprintf(w, "Debug mode enabled on %s for %s\n", db, flagDebugTTL)
		}
		return nil
	},
}

// adminError is an error returned by the admin server.
type adminError struct {
	status int
	detail string
}

func (e *adminError) Error() string {
	return fmt.Sprintf("admin server: %s (%d)", e.detail, e.status)
}

func isNotFound(err error) bool {
	var aerr *adminError
	return errors.As(err, &aerr) && aerr.status == http.StatusNotFound
}

// adminRequest sends a request to the admin server, and decodes its JSON
// response in out, if it has one.
func adminRequest(ctx context.Context, method, u string, out interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	client := &http.Client{Timeout: 30 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		aerr := &adminError{status: res.StatusCode, detail: http.StatusText(res.StatusCode)}
		var body weberrors.Response
		if json.NewDecoder(res.Body).Decode(&body) == nil && len(body.Errors) > 0 {
			aerr.detail = body.Errors[0].Detail
		}
		return aerr
	}
	if res.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func init() {
	flags := debugCmd.Flags()
	flags.DurationVar(&flagDebugTTL, "ttl", debug.DefaultTTL, "duration of the debug mode")
	flags.BoolVar(&flagDebugDisable, "disable", false, "deactivate the debug mode")
	flags.BoolVar(&flagDebugStatus, "status", false, "print when the debug mode ends")
	RootCmd.AddCommand(debugCmd)
}
