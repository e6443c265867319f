package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blacktop/blogrelay/internal/config"
	"github.com/blacktop/blogrelay/internal/relay/graph"
	"github.com/spf13/cobra"
)

func newPagesCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pages [page-id...]",
		Short: "List managed pages or check the page token of each page id",
		Long: "Without arguments, pages lists every page the configured token manages. " +
			"With page ids, it resolves each page token and reports the tasks it grants.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Require(config.PagesVars...); err != nil {
				return err
			}
			gc, err := newGraphClient(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				pages, err := gc.Pages(cmd.Context())
				if err != nil {
					return err
				}
				return printPages(out, pages, asJSON)
			}

			var (
				pages []graph.Page
				errs  []error
			)
			for _, id := range args {
				page, err := gc.PagePermissions(cmd.Context(), id)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				pages = append(pages, page)
			}
			if err := printPages(out, pages, asJSON); err != nil {
				return err
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print pages as JSON")
	return cmd
}

func printPages(out io.Writer, pages []graph.Page, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if pages == nil {
			pages = []graph.Page{}
		}
		return enc.Encode(pages)
	}
	for _, p := range pages {
		fmt.Fprintf(out, "%s\t%s\tcategory=%s\ttoken=%t\ttasks=%s\n", p.ID, p.Name, p.Category, p.HasToken, strings.Join(p.Tasks, ","))
	}
	return nil
}
