package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/eoln/scrub/internal/catalog"
	scrubhttp "github.com/eoln/scrub/internal/http"
	"github.com/eoln/scrub/internal/jobs"
	"github.com/eoln/scrub/internal/store"
)

func newEndpointsCommand(cc *commandContext) *cobra.Command {
	var (
		assets []string
		tiers  []int
		path   string
		show   bool
	)

	cmd := &cobra.Command{
		Use:   "endpoints",
		Short: "Fetch, filter and store the endpoint catalog",
		Long: `Fetch the endpoint catalog from the API, filter it and store it as
endpoints.json in the output location. The stored catalog is the input of
'scrub scrape'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cc.validate(); err != nil {
				return err
			}
			ctx := cmd.Context()
			logger := cc.logger

			st, err := store.Open(ctx, cc.cfg.Output)
			if err != nil {
				return withCode(ExitStorageError, err)
			}
			defer st.Close()

			client := scrubhttp.NewClient(scrubhttp.OptionsFromConfig(cc.cfg))

			endpoints, err := catalog.Fetch(ctx, client)
			if err != nil {
				return withCode(ExitAPIUnreachable, err)
			}
			logger.Info("fetched endpoint catalog", "endpoints", len(endpoints))

			filter := catalog.Filter{Assets: assets, Tiers: tiers, Path: path}
			endpoints, err = filter.Apply(endpoints)
			if err != nil {
				return withCode(ExitInvalidArgs, err)
			}
			logger.Info("filtered endpoint catalog",
				"endpoints", len(endpoints),
				"assets", assets,
				"tiers", tiers,
				"path", path,
			)

			if err := catalog.Save(ctx, st, endpoints); err != nil {
				return withCode(ExitStorageError, err)
			}
			logger.Info("stored endpoint catalog", "file", catalog.FileName, "output", cc.cfg.Output)

			if show {
				fmt.Fprintln(cc.stdout, renderEndpoints(endpoints, cc.cfg.Resolutions))
			}
			fmt.Fprintf(cc.stdout, "[scrub] Stored %d endpoints in %s\n", len(endpoints), catalog.FileName)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&assets, "assets", "a", []string{"*"}, "Asset symbols to keep: BTC, ETH, ... (* keeps all)")
	cmd.Flags().IntSliceVarP(&tiers, "tiers", "t", []int{0}, "Tiers to keep: 1, 2, 3 (0 keeps all)")
	cmd.Flags().StringVarP(&path, "path", "p", "*", "Regular expression the endpoint path must start with (* keeps all)")
	cmd.Flags().BoolVar(&show, "show", false, "Print the filtered catalog")

	return cmd
}

// renderEndpoints lists endpoints with the resolution a scrape would use.
func renderEndpoints(endpoints []catalog.Endpoint, prefs []string) string {
	rows := make([][]string, 0, len(endpoints))
	for _, e := range endpoints {
		symbols := make([]string, len(e.Assets))
		for i, a := range e.Assets {
			symbols[i] = a.Symbol
		}
		rows = append(rows, []string{
			e.Path,
			strconv.Itoa(e.Tier),
			strconv.Itoa(len(e.Assets)),
			truncate(strings.Join(symbols, ","), 40),
			jobs.PickResolution(prefs, e.Resolutions),
		})
	}
	return renderTable(
		[]string{"Path", "Tier", "Assets", "Symbols", "Resolution"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

// truncate shortens s to at most n display columns, ending in "...".
func truncate(s string, n int) string {
	return text.Snip(s, n, "...")
}
