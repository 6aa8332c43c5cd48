package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/config"
	"github.com/cozy/cozy-autoviews/pkg/couchdb"
	"github.com/spf13/cobra"
)

// queryOptions are the refinements of the query command. The JSON values are
// parsed with autoview.ParseKey.
type queryOptions struct {
	Key        string
	Start      string
	End        string
	ExcludeEnd bool
	Prefix     string
	Reverse    bool
	Limit      int
	AfterKey   string
	AfterID    string
	NoDocs     bool
	Group      bool
	GroupLevel int
	ReduceRows bool
	DryRun     bool
}

var queryFlags queryOptions

var queryCmd = &cobra.Command{
	Use:   "query <field>...",
	Short: "Query the view generated for a list of fields",
	Long: `Query the view generated for the fields given as arguments, and print the
rows, one JSON object per line. The design document of the view is created if
it does not exist yet.

The refinements are applied in this order, and the incompatible combinations
are rejected before sending anything to CouchDB:

  1. --key, --start/--end or --prefix
  2. --reverse
  3. --limit, with --after-key and --after-id for the next pages
  4. --no-docs, --group/--group-level or --reduce-rows
`,
	Example: `$ autoviews query even key --prefix '[true]' --reverse --limit 2
$ autoviews query even key --reduce count --group-level 1
$ autoviews query key --start '["key-2"]' --end '["key-4"]' --exclude-end --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := specFromArgs(args)
		if err != nil {
			return err
		}

		var store autoview.Store
		if !queryFlags.DryRun {
			client, err := config.CouchClient()
			if err != nil {
				return err
			}
			store = client
		}

		q, err := refineQuery(autoview.NewAutoView(store, spec).Query(), queryFlags)
		if err != nil {
			return err
		}

		if queryFlags.DryRun {
			return printRequest(cmd, spec, q.Request())
		}
		rows, err := q.Exec(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		return nil
	},
}

func printRequest(cmd *cobra.Command, spec *autoview.Spec, req *couchdb.ViewRequest) error {
	v, err := req.Values()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "GET /{db}/_design/%s/_view/%s?%s\n", spec.Name(), spec.Name(), v.Encode())
	return nil
}

func parseFlagKey(name, raw string) ([]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	key, err := autoview.ParseKey([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return key, nil
}

// refineQuery applies the refinements of opts to q. All the given selections
// are applied, so that the query builder rejects the second one.
func refineQuery(q *autoview.Query, opts queryOptions) (*autoview.Query, error) {
	key, err := parseFlagKey("key", opts.Key)
	if err != nil {
		return nil, err
	}
	start, err := parseFlagKey("start", opts.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseFlagKey("end", opts.End)
	if err != nil {
		return nil, err
	}
	prefix, err := parseFlagKey("prefix", opts.Prefix)
	if err != nil {
		return nil, err
	}

	if key != nil {
		if q, err = q.Key(key...); err != nil {
			return nil, err
		}
	}
	if start != nil || end != nil || opts.ExcludeEnd {
		if q, err = q.Range(start, end, opts.ExcludeEnd); err != nil {
			return nil, err
		}
	}
	if prefix != nil {
		if q, err = q.Prefix(prefix...); err != nil {
			return nil, err
		}
	}
	if opts.Reverse {
		if q, err = q.Reverse(); err != nil {
			return nil, err
		}
	}
	if opts.Limit != 0 || opts.AfterKey != "" {
		var afterKey interface{}
		if opts.AfterKey != "" {
			if err := json.Unmarshal([]byte(opts.AfterKey), &afterKey); err != nil {
				return nil, fmt.Errorf("--after-key: %w", err)
			}
		}
		if q, err = q.PageAfter(opts.Limit, afterKey, opts.AfterID); err != nil {
			return nil, err
		}
	}
	if opts.NoDocs {
		if q, err = q.NoFullDocuments(); err != nil {
			return nil, err
		}
	}
	if opts.Group || opts.GroupLevel != 0 {
		if q, err = q.Group(opts.GroupLevel); err != nil {
			return nil, err
		}
	}
	if opts.ReduceRows {
		if q, err = q.Reduce(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func init() {
	addSpecFlags(queryCmd)

	flags := queryCmd.Flags()
	flags.StringVar(&queryFlags.Key, "key", "", "JSON key of the rows")
	flags.StringVar(&queryFlags.Start, "start", "", "JSON start key of the range")
	flags.StringVar(&queryFlags.End, "end", "", "JSON end key of the range")
	flags.BoolVar(&queryFlags.ExcludeEnd, "exclude-end", false, "exclude the rows with the end key")
	flags.StringVar(&queryFlags.Prefix, "prefix", "", "JSON array of the first components of the keys")
	flags.BoolVar(&queryFlags.Reverse, "reverse", false, "return the rows in descending order")
	flags.IntVar(&queryFlags.Limit, "limit", 0, "maximal number of rows")
	flags.StringVar(&queryFlags.AfterKey, "after-key", "", "JSON key of the last row of the previous page")
	flags.StringVar(&queryFlags.AfterID, "after-id", "", "document id of the last row of the previous page")
	flags.BoolVar(&queryFlags.NoDocs, "no-docs", false, "do not include the documents in the rows")
	flags.BoolVar(&queryFlags.Group, "group", false, "reduce the rows by key")
	flags.IntVar(&queryFlags.GroupLevel, "group-level", 0, "reduce the rows by the first components of the key")
	flags.BoolVar(&queryFlags.ReduceRows, "reduce-rows", false, "reduce all the rows to a single value")
	flags.BoolVar(&queryFlags.DryRun, "dry-run", false, "print the request instead of sending it")

	RootCmd.AddCommand(queryCmd)
}
