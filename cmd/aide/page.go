package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aidekernel/aide/internal/assembly"
	"github.com/aidekernel/aide/internal/render"
	"github.com/aidekernel/aide/internal/types"
)

var pageCmd = &cobra.Command{
	Use:   "page",
	Short: "Inspect and manage living pages directly, bypassing the orchestrator",
}

var pageHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
var pageWarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
var pageSuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

func init() {
	rootCmd.AddCommand(pageCmd)

	createCmd := &cobra.Command{
		Use:   "create <page-id>",
		Short: "Create a new living page from the default blueprint and save it",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageCreate,
	}
	showCmd := &cobra.Command{
		Use:   "show <page-id>",
		Short: "Render a page's current state as plain text",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageShow,
	}
	forkCmd := &cobra.Command{
		Use:   "fork <page-id>",
		Short: "Fork a page into a new, independent page",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageFork,
	}
	publishCmd := &cobra.Command{
		Use:   "publish <page-id>",
		Short: "Publish a page and print its public URL",
		Args:  cobra.ExactArgs(1),
		RunE:  runPagePublish,
	}
	publishCmd.Flags().String("actor-tier", "free", "subscription tier of the publishing actor")
	publishCmd.Flags().Int("slug-length", 8, "length of the minted publish slug")

	compactCmd := &cobra.Command{
		Use:   "compact <page-id>",
		Short: "Drop prefix events, keeping only the most recent N",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageCompact,
	}
	compactCmd.Flags().Int("keep-recent", 100, "number of trailing events to retain")

	integrityCmd := &cobra.Command{
		Use:   "integrity <page-id>",
		Short: "Check a page's event log and snapshot for consistency",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageIntegrity,
	}
	repairCmd := &cobra.Command{
		Use:   "repair <page-id>",
		Short: "Rebuild a page's snapshot by replaying its event log",
		Args:  cobra.ExactArgs(1),
		RunE:  runPageRepair,
	}

	pageCmd.AddCommand(createCmd, showCmd, forkCmd, publishCmd, compactCmd, integrityCmd, repairCmd)
}

func openStore(ctx context.Context) (*assembly.Store, error) {
	return assembly.Open(ctx, filepath.Join(dataDir, "aide.db"))
}

func runPageCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	pageID := args[0]
	file, err := assembly.Create(pageID, loadBlueprint())
	if err != nil {
		return err
	}
	if err := assembly.Save(ctx, store, file); err != nil {
		return fmt.Errorf("save page: %w", err)
	}

	if jsonOutput {
		outputJSON(map[string]string{"page_id": file.PageID})
		return nil
	}
	fmt.Println(pageSuccessStyle.Render("created page " + file.PageID))
	return nil
}

func runPageShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := assembly.Load(ctx, store, args[0])
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(map[string]interface{}{"page_id": file.PageID, "document": file.Document})
		return nil
	}
	fmt.Println(pageHeaderStyle.Render(file.PageID))
	fmt.Println(renderTerminalPreview(file.State))
	return nil
}

// renderTerminalPreview turns the renderer's plain-text variant (already
// markdown-list-shaped) into a styled terminal preview via glamour, wrapped
// to the current terminal width.
func renderTerminalPreview(state types.PageState) string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return render.RenderPlainText(state)
	}
	out, err := r.Render(render.RenderPlainText(state))
	if err != nil {
		return render.RenderPlainText(state)
	}
	return strings.TrimRight(out, "\n")
}

func runPageFork(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := assembly.Load(ctx, store, args[0])
	if err != nil {
		return err
	}
	forked, err := assembly.Fork(file)
	if err != nil {
		return err
	}
	if err := assembly.Save(ctx, store, forked); err != nil {
		return fmt.Errorf("save forked page: %w", err)
	}

	if jsonOutput {
		outputJSON(map[string]string{"page_id": forked.PageID})
		return nil
	}
	fmt.Println(pageSuccessStyle.Render("forked " + args[0] + " -> " + forked.PageID))
	return nil
}

func runPagePublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := assembly.Load(ctx, store, args[0])
	if err != nil {
		return err
	}

	actorTier, _ := cmd.Flags().GetString("actor-tier")
	slugLen, _ := cmd.Flags().GetInt("slug-length")
	result, err := assembly.Publish(ctx, store, file, actorTier, slugLen)
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(result)
		return nil
	}
	fmt.Println(pageSuccessStyle.Render("published to " + result.URL))
	return nil
}

func runPageCompact(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := assembly.Load(ctx, store, args[0])
	if err != nil {
		return err
	}
	keepRecent, _ := cmd.Flags().GetInt("keep-recent")
	compacted, err := assembly.Compact(file, keepRecent)
	if err != nil {
		return err
	}
	if err := assembly.Save(ctx, store, compacted); err != nil {
		return fmt.Errorf("save compacted page: %w", err)
	}

	if jsonOutput {
		outputJSON(map[string]int{"events_retained": len(compacted.Events)})
		return nil
	}
	fmt.Println(pageSuccessStyle.Render(fmt.Sprintf("compacted, %d events retained", len(compacted.Events))))
	return nil
}

func runPageIntegrity(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := assembly.Load(ctx, store, args[0])
	if err != nil {
		return err
	}
	report := assembly.CheckIntegrity(file)

	if jsonOutput {
		outputJSON(report)
		return nil
	}
	if report.OK {
		fmt.Println(pageSuccessStyle.Render("OK"))
		return nil
	}
	fmt.Println(pageWarningStyle.Render("integrity check failed"))
	if len(report.SequenceGaps) > 0 {
		fmt.Printf("  sequence gaps: %v\n", report.SequenceGaps)
	}
	if len(report.BrokenParentRefs) > 0 {
		fmt.Printf("  broken parent refs: %v\n", report.BrokenParentRefs)
	}
	if len(report.UnknownRelEndpoints) > 0 {
		fmt.Printf("  unknown relationship endpoints: %v\n", report.UnknownRelEndpoints)
	}
	return nil
}

func runPageRepair(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	file, err := assembly.Load(ctx, store, args[0])
	if err != nil {
		return err
	}
	repaired, err := assembly.Repair(file)
	if err != nil {
		return err
	}
	if err := assembly.Save(ctx, store, repaired); err != nil {
		return fmt.Errorf("save repaired page: %w", err)
	}

	if jsonOutput {
		outputJSON(map[string]string{"page_id": repaired.PageID})
		return nil
	}
	fmt.Println(pageSuccessStyle.Render("repaired " + repaired.PageID))
	return nil
}
