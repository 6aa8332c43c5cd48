package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cozy/cozy-autoviews/pkg/autoview"
	"github.com/cozy/cozy-autoviews/pkg/config"
	"github.com/spf13/cobra"
)

// specOptions are the flags that complete the fields of the key given as
// arguments to describe a view.
var specOptions autoview.Options

func addSpecFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&specOptions.Each, "each", "", "array field: one row is emitted for each element")
	flags.StringVar(&specOptions.Value, "value", "", "field used as the value of the rows")
	flags.StringVar(&specOptions.Reduce, "reduce", "", "built-in reduce function: sum, count or stats")
}

func specFromArgs(args []string) (*autoview.Spec, error) {
	return autoview.New(args, specOptions)
}

var viewsCmdGroup = &cobra.Command{
	Use:   "views <command>",
	Short: "Show and create the views generated from a list of fields",
	Long: `
autoviews views describes the views generated from a list of fields: the key is
made of the fields given as arguments, in this order.

The fields of the elements of the --each array are written with a leading dot:

	$ autoviews views name .name --each tags --value .weight --reduce sum
	.name--sum--.weight--tags
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Usage()
	},
}

var viewsNameCmd = &cobra.Command{
	Use:     "name <field>...",
	Short:   "Print the name of the view and of its design document",
	Example: "$ autoviews views name even key --reduce count",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := specFromArgs(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), spec.Name())
		return nil
	},
}

var flagDesignDoc bool

var viewsMapCmd = &cobra.Command{
	Use:   "map <field>...",
	Short: "Print the map function of the view",
	Long: `Print the map function of the view, as sent to CouchDB. With --design-doc,
the whole design document is printed in JSON.`,
	Example: "$ autoviews views map even key --design-doc",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := specFromArgs(args)
		if err != nil {
			return err
		}
		if !flagDesignDoc {
			src, err := spec.MapSource()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), src)
			return nil
		}
		ddoc, err := spec.DesignDoc()
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(ddoc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var viewsListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the views declared in the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, spec := range config.Views() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", spec.Name(), strings.Join(spec.Key(), ","))
		}
		return nil
	},
}

var viewsEnsureCmd = &cobra.Command{
	Use:   "ensure [field]...",
	Short: "Create the design documents of the views if they do not exist",
	Long: `Create the design document of the view for the given fields, or of all the
views declared in the configuration file if no field is given. The existing
design documents are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		specs := config.Views()
		if len(args) > 0 {
			spec, err := specFromArgs(args)
			if err != nil {
				return err
			}
			specs = []*autoview.Spec{spec}
		}
		if len(specs) == 0 {
			return errors.New("No view declared in the configuration")
		}
		client, err := config.CouchClient()
		if err != nil {
			return err
		}
		if err := autoview.EnsureViews(cmd.Context(), client, specs...); err != nil {
			return err
		}
		for _, spec := range specs {
			fmt.Fprintln(cmd.OutOrStdout(), spec.DesignDocID())
		}
		return nil
	},
}

func init() {
	addSpecFlags(viewsNameCmd)
	addSpecFlags(viewsMapCmd)
	addSpecFlags(viewsEnsureCmd)
	viewsMapCmd.Flags().BoolVar(&flagDesignDoc, "design-doc", false, "print the whole design document")

	viewsCmdGroup.AddCommand(viewsNameCmd)
	viewsCmdGroup.AddCommand(viewsMapCmd)
	viewsCmdGroup.AddCommand(viewsListCmd)
	viewsCmdGroup.AddCommand(viewsEnsureCmd)
	RootCmd.AddCommand(viewsCmdGroup)
}
