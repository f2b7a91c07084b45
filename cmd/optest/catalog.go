package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/skulanov/OP-test/internal/parser"
	"github.com/skulanov/OP-test/internal/quiz"
	"github.com/skulanov/OP-test/internal/source"
	"github.com/skulanov/OP-test/internal/store"
)

func parserFlags(cmd *cobra.Command) {
	cmd.Flags().String("alphabet", parser.DefaultAlphabet, "Option letters, in order")
	cmd.Flags().String("marker", parser.DefaultMarker, "Glyph that flags the correct option")
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check FILE|URL",
		Short: "Parse a question bank and report what would be loaded",
		Args:  cobra.ExactArgs(1),
		RunE:  runCheck,
	}
	parserFlags(cmd)
	logFlags(cmd.Flags())
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE|URL",
		Short: "Parse a question bank into the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	cmd.Flags().String("bank-name", "", "Catalogue name (defaults to the file name without extension)")
	cmd.Flags().Bool("replace", false, "Replace the bank when its source changed")
	parserFlags(cmd)
	dbFlags(cmd.Flags())
	logFlags(cmd.Flags())
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export catalogue banks as JSON",
		RunE:  runExport,
	}
	cmd.Flags().String("bank-name", "", "Bank to export (all banks when empty)")
	cmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	dbFlags(cmd.Flags())
	logFlags(cmd.Flags())
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogue banks",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	dbFlags(cmd.Flags())
	logFlags(cmd.Flags())
	return cmd
}

func deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Remove a bank from the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	dbFlags(cmd.Flags())
	logFlags(cmd.Flags())
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	p, err := newParser(v)
	if err != nil {
		return err
	}
	raw, err := source.Fetch(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	res := p.Parse(raw)

	counts := make(map[string]int)
	for _, q := range res.Questions {
		counts[q.Chapter]++
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, ch := range quiz.DeriveChapters(res.Questions) {
		fmt.Fprintf(tw, "%s\t%d\n", ch, counts[ch])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	dropped := 0
	for _, is := range res.Issues {
		if is.Kind.Dropped() {
			dropped++
		}
		fmt.Fprintf(out, "line %d: %s: %s\n", is.Line, is.Kind, is.Prompt)
	}
	fmt.Fprintf(out, "%d questions, %d chapters, %d dropped\n",
		len(res.Questions), len(counts), dropped)

	if len(res.Questions) == 0 {
		return quiz.ErrNoQuestions
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := commandContext(cmd)
	location := args[0]

	name := v.GetString("bank-name")
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(location), filepath.Ext(location))
	}

	p, err := newParser(v)
	if err != nil {
		return err
	}
	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer db.Close()

	raw, err := source.Fetch(ctx, location)
	if err != nil {
		return err
	}
	hash := sha256sum([]byte(raw))

	storedHash, err := db.GetImportedFileHash(ctx, location)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", location, err)
	}
	exists := true
	if _, err := db.GetBank(ctx, name); errors.Is(err, store.ErrNotFound) {
		exists = false
	} else if err != nil {
		return fmt.Errorf("look up bank %s: %w", name, err)
	}

	if exists && storedHash == hash {
		slog.Info("questions file unchanged, skipping", "path", location, "bank", name)
		return nil
	}
	if exists && !v.GetBool("replace") {
		slog.Warn("bank already imported, skipping; pass --replace to overwrite",
			"path", location, "bank", name)
		return nil
	}

	res := p.Parse(raw)
	for _, is := range res.Issues {
		slog.Debug("skipped bank entry", "line", is.Line, "prompt", is.Prompt, "reason", is.Kind)
	}
	if len(res.Questions) == 0 {
		return fmt.Errorf("parse %s: %w", location, quiz.ErrNoQuestions)
	}

	info, err := db.SaveBank(ctx, name, location, res.Questions, exists)
	if err != nil {
		return fmt.Errorf("save bank %s: %w", name, err)
	}
	if err := db.SetImportedFileHash(ctx, location, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", location, err)
	}
	slog.Info("imported questions", "path", location, "bank", info.Name, "id", info.ID,
		"count", info.Questions, "replaced", exists)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := commandContext(cmd)

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer db.Close()

	var export any
	if name := v.GetString("bank-name"); name != "" {
		export, err = db.ExportBank(ctx, name)
	} else {
		export, err = db.ExportAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("export banks: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := commandContext(cmd)

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer db.Close()

	banks, err := db.ListBanks(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tQUESTIONS\tIMPORTED\tSOURCE")
	for _, b := range banks {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", b.Name, b.Questions, b.ImportedAt.Format(time.DateTime), b.Source)
	}
	return tw.Flush()
}

func runDelete(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := commandContext(cmd)

	db, err := openStore(ctx, v)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer db.Close()

	if err := db.DeleteBank(ctx, args[0]); err != nil {
		return fmt.Errorf("delete bank %s: %w", args[0], err)
	}
	slog.Info("deleted bank", "bank", args[0])
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// commandContext falls back to Background for commands run without Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
