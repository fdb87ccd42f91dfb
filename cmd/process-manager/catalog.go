package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rental-process/internal/catalog"
	"rental-process/internal/wizard/requirements"
)

func catalogCmd() *cobra.Command {
	var (
		asJSON   bool
		profile  string
		security string
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print profiles, guarantees and the fields they require",
		Long: `Print the catalog tables.

Examples:
  process-manager catalog
  process-manager catalog --profile formal --security double
  process-manager catalog --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile != "" || security != "" {
				fields := requirements.RequiredFields(catalog.ProfileType(profile), catalog.SecurityType(security))
				if asJSON {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(fields)
				}
				return printFields(cmd, fields)
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
					"profiles":   catalog.Profiles(),
					"securities": catalog.Securities(),
				})
			}
			return printTables(cmd)
		},
	}
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "output as JSON")
	cmd.Flags().StringVarP(&profile, "profile", "p", "", "show the fields required for this profile")
	cmd.Flags().StringVarP(&security, "security", "s", "", "show the fields required for this guarantee")
	return cmd
}

func printTables(cmd *cobra.Command) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tLABEL\tDOCUMENTS")
	for _, p := range catalog.Profiles() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.Type, p.Label, len(p.Documents))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SECURITY\tLABEL\tFIELDS\tCONSENT")
	for _, s := range catalog.Securities() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%t\n", s.Type, s.Label, len(s.Fields), s.RequiresCosignerConsent)
	}
	return w.Flush()
}

func printFields(cmd *cobra.Command, fields []catalog.FieldSpec) error {
	if len(fields) == 0 {
		fmt.Fprintln(os.Stderr, "no fields: unknown or empty profile and guarantee")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSOURCE\tOPTIONAL\tLABEL")
	for _, f := range fields {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", f.ID, f.Kind, f.Source, f.Optional, f.Label)
	}
	return w.Flush()
}
