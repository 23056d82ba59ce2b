package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-dash/internal/cli"
	"github.com/Veraticus/spice-dash/internal/data"
	"github.com/Veraticus/spice-dash/internal/home"
	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the headline KPIs and highlights",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := startManager(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer data.Shutdown()

			fmt.Println(renderSummary(m, optional(cmd.Flags().Changed("region"), region)))
			return nil
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "restrict highlights to one state (or ONLINE)")
	return cmd
}

func renderSummary(m *data.Manager, region *string) string {
	kpis := m.KPIs()
	h := m.Home()

	var b strings.Builder
	b.WriteString(cli.FormatKPI("Transactions", strconv.FormatInt(kpis.Count, 10)) + "\n")
	b.WriteString(cli.FormatKPI("Total value", home.FormatMoney(kpis.Sum)) + "\n")
	b.WriteString(cli.FormatKPI("Average value", home.FormatMoney(kpis.Mean)) + "\n")
	b.WriteString(cli.FormatKPI("Users", strconv.Itoa(len(m.Users()))) + "\n")
	b.WriteString(cli.FormatKPI("Cards", strconv.Itoa(len(m.Cards()))) + "\n")

	title := "Overview"
	if region != nil {
		title = "Overview: " + *region
		o := h.Overview(region)
		b.WriteString(cli.FormatKPI("Region transactions", strconv.FormatInt(o.Count, 10)) + "\n")
		b.WriteString(cli.FormatKPI("Region value", home.FormatMoney(o.Sum)) + "\n")
	}

	highlights := []struct {
		label string
		h     home.Highlight
	}{
		{"Most valuable merchant", h.MostValuableMerchant(region)},
		{"Most visited merchant", h.MostVisitedMerchant(region)},
		{"Top spending user", h.TopSpendingUser(region)},
		{"Peak hour", h.PeakHour(region)},
	}
	for _, hl := range highlights {
		b.WriteString(cli.FormatKPI(hl.label, hl.h.Label+" ("+hl.h.Value+")") + "\n")
	}

	errs := h.ErrorSummary(region)
	b.WriteString(cli.FormatKPI("Rows with errors", fmt.Sprintf("%d (%.2f%%)", errs.Count, errs.Share*100)))

	return cli.RenderBox(title, b.String())
}
