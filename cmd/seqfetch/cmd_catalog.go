package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/molluscomics/seqfetch/internal/command"
	"github.com/molluscomics/seqfetch/internal/model"
)

var (
	listJSON   bool
	listMethod string
)

// listCmd prints the dataset catalog
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the datasets in the catalog",
	Args:  cobra.NoArgs,
	RunE:  listDatasets,
}

// showCmd prints one dataset in detail
var showCmd = &cobra.Command{
	Use:   "show <dataset>",
	Short: "Show a dataset and the metadata commands for its BioProjects",
	Args:  cobra.ExactArgs(1),
	RunE:  showDataset,
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	idStyle     = lipgloss.NewStyle().Bold(true)
	labelStyle  = lipgloss.NewStyle().Faint(true)
	methodStyle = map[model.Method]lipgloss.Style{
		model.MethodWGBS:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		model.MethodRRBS:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		model.MethodMeDIPSeq: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.MethodTargeted: lipgloss.NewStyle().Foreground(lipgloss.Color("170")),
		model.MethodMixed:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
)

// Listing column widths
const (
	colID      = 30
	colMethod  = 11
	colProject = 40
	colSize    = 12
)

func listDatasets(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	records := cat.List()
	if listMethod != "" {
		m, err := model.ParseMethod(listMethod)
		if err != nil {
			return err
		}
		records = records[:0]
		for _, id := range cat.ByMethod()[m] {
			rec, err := cat.Lookup(id)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
	}
	out := cmd.OutOrStdout()

	if listJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	renderListing(out, records, cat.Len())
	return nil
}

func renderListing(w io.Writer, records []model.DatasetRecord, total int) {
	cell := func(width int, style lipgloss.Style, text string) string {
		return style.Width(width).Render(text)
	}

	fmt.Fprintln(w, strings.Join([]string{
		cell(colID, headerStyle, "DATASET"),
		cell(colMethod, headerStyle, "METHOD"),
		cell(colProject, headerStyle, "BIOPROJECTS"),
		cell(colSize, headerStyle, "SIZE"),
		headerStyle.Render("SAMPLES"),
	}, " "))

	for _, rec := range records {
		fmt.Fprintln(w, strings.Join([]string{
			cell(colID, idStyle, rec.ID),
			cell(colMethod, methodStyle[rec.Method], rec.Method.String()),
			cell(colProject, lipgloss.NewStyle(), strings.Join(rec.BioProjects, ",")),
			cell(colSize, lipgloss.NewStyle(), rec.Size.String()),
			rec.Samples.String(),
		}, " "))
	}
	if len(records) == total {
		fmt.Fprintf(w, "\n%d datasets\n", total)
	} else {
		fmt.Fprintf(w, "\n%d of %d datasets\n", len(records), total)
	}
}

func showDataset(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	rec, err := cat.Lookup(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	field := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(out, "%s %s\n", labelStyle.Width(13).Render(label+":"), value)
	}

	fmt.Fprintln(out, idStyle.Render(rec.ID))
	field("Method", methodStyle[rec.Method].Render(rec.Method.String()))
	field("Data types", strings.Join(rec.DataTypes, ", "))
	field("BioProjects", strings.Join(rec.BioProjects, ", "))
	field("Size", rec.Size.String())
	field("Samples", rec.Samples.String())
	field("Tissues", strings.Join(rec.TissueTypes, ", "))
	field("Description", rec.Description)
	field("Notes", rec.Notes)
	field("Search", rec.SearchURL)
	field("Citation", rec.Citation)

	gen := command.NewGenerator(settings.GeneratorOptions())
	fmt.Fprintln(out)
	fmt.Fprintln(out, headerStyle.Render("Metadata commands"))
	for _, acc := range rec.BioProjects {
		fmt.Fprintln(out, gen.MetadataCommand(rec.ID, acc).String())
	}
	return nil
}
