// Command powercalc computes VSR voting power once and writes reports.
//
// Usage:
//
//	powercalc --registrar <pubkey> --rpc-endpoint <url> [--wallet <pubkey>]
//	powercalc --accounts accounts.json --registrar-config registrar.json --eval-ts 1700000000
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"vsr-power-lab/internal/app"
	"vsr-power-lab/internal/config"
	"vsr-power-lab/internal/domain"
	"vsr-power-lab/internal/logger"
	"vsr-power-lab/internal/observability"
	"vsr-power-lab/internal/orchestrator"
	"vsr-power-lab/internal/reporting"
	"vsr-power-lab/internal/snapshot"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("powercalc", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	wallet := fs.String("wallet", "", "Compute a single wallet (aliases resolve to their primary)")
	format := fs.String("format", "json", "Output format: json, csv, markdown or all")
	out := fs.String("out", "-", "Output file for json/csv/markdown, - for stdout")
	persist := fs.Bool("persist", false, "Store the snapshot (requires --postgres-dsn or --use-memory)")
	topN := fs.Int("top", reporting.DefaultTopN, "Leaderboard rows in markdown output")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if *persist {
		if err := cfg.ValidateStorage(); err != nil {
			return err
		}
	}
	switch *format {
	case "json", "csv", "markdown", "all":
	default:
		return fmt.Errorf("unsupported --format %q", *format)
	}

	// Logs go to stderr so stdout carries only report output.
	log := logger.NewWithWriter(os.Stderr, cfg.Verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	in, err := app.LoadInputs(cfg, log)
	if err != nil {
		return err
	}

	if *wallet != "" {
		return runWallet(ctx, cfg, in, *wallet, *out, log)
	}

	var stores *app.Stores
	if *persist {
		if stores, err = app.OpenStores(ctx, cfg, log); err != nil {
			return err
		}
		defer stores.Close()
	}

	orch, err := app.NewOrchestrator(cfg, in, stores, log)
	if err != nil {
		return err
	}
	res, err := orch.Run(ctx, orchestrator.TriggerManual)
	if err != nil {
		return err
	}

	gen := reporting.NewGenerator(nil, nil)
	report := gen.FromPowerReport(reporting.Summary{
		SnapshotID:    res.SnapshotID,
		Registrar:     res.Registrar,
		GoverningMint: res.Config.GoverningMint.String(),
	}, res.Report)

	d := res.Report.Diagnostics
	log.Info("computation finished",
		"snapshot_id", res.SnapshotID,
		"members", report.Summary.MembersTotal,
		"total_power", report.Summary.TotalPower,
		"voters", d.VotersDecoded,
		"decode_errors", d.DecodeErrors,
		"phantoms", d.PhantomsDropped,
		"other_mint", d.OtherMintSkipped,
		"duplicates", d.DuplicatesDropped,
		"persisted", res.Persisted,
	)

	if *format == "all" {
		return writeAll(cfg.OutputDir, report, *topN, log)
	}
	return withOutput(*out, func(w io.Writer) error {
		return render(w, *format, report, *topN)
	})
}

// runWallet computes one member. With an RPC source only the member's voter
// PDAs are fetched instead of the whole program.
func runWallet(ctx context.Context, cfg *config.Config, in *app.Inputs, walletArg, out string, log *slog.Logger) error {
	wallet, err := domain.ParsePubKey(walletArg)
	if err != nil {
		return fmt.Errorf("--wallet: %w", err)
	}
	id := in.Aliases.Identity(wallet)

	var snap *snapshot.Snapshot
	if in.RPC != nil {
		authorities := []domain.PubKey{id.PrimaryKey}
		for alias := range id.AliasKeys {
			authorities = append(authorities, alias)
		}
		accounts, err := in.RPC.FetchWallet(ctx, authorities)
		if err != nil {
			return err
		}
		snap = &snapshot.Snapshot{Accounts: accounts}
		if in.ConfigOverride == nil {
			if snap.Registrar, err = in.RPC.FetchRegistrar(ctx); err != nil {
				return err
			}
		}
	} else {
		if snap, err = in.Source.Fetch(ctx); err != nil {
			return err
		}
	}

	rc, err := snapshot.ResolveConfig(snap, in.ConfigOverride, in.Mint)
	if err != nil {
		return err
	}

	engine := app.NewEngine(cfg, in.ProgramID, log)
	now := app.NewClock(cfg).Now().Unix()
	res, diag, err := engine.ComputeMember(ctx, snap.Accounts, rc, in.Aliases, wallet, now)
	if err != nil {
		return err
	}
	log.Info("member computed",
		"wallet", res.Member.String(),
		"total_power", reporting.FormatDecimal(res.TotalPower),
		"accounts", res.AccountsScanned,
		"decode_errors", diag.DecodeErrors,
	)

	observability.RecordReport("json")
	return withOutput(out, func(w io.Writer) error {
		return reporting.RenderJSON(w, []reporting.MemberOutput{reporting.NewMemberOutput(*res)})
	})
}

func render(w io.Writer, format string, report *reporting.Report, topN int) error {
	observability.RecordReport(format)
	switch format {
	case "csv":
		_, err := io.WriteString(w, reporting.RenderCSV(report.Members))
		return err
	case "markdown":
		_, err := io.WriteString(w, reporting.RenderMarkdown(report, topN))
		return err
	default:
		return reporting.RenderJSON(w, report.Members)
	}
}

// writeAll writes every report format into dir.
func writeAll(dir string, report *reporting.Report, topN int, log *slog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name   string
		format string
		write  func(io.Writer) error
	}{
		{"power.json", "json", func(w io.Writer) error { return reporting.RenderJSON(w, report.Members) }},
		{"report.json", "json", func(w io.Writer) error { return reporting.RenderReportJSON(w, report) }},
		{"leaderboard.csv", "csv", func(w io.Writer) error {
			_, err := io.WriteString(w, reporting.RenderCSV(report.Members))
			return err
		}},
		{"deposits.csv", "csv", func(w io.Writer) error {
			_, err := io.WriteString(w, reporting.RenderDepositsCSV(report.Members))
			return err
		}},
		{"REPORT.md", "markdown", func(w io.Writer) error {
			_, err := io.WriteString(w, reporting.RenderMarkdown(report, topN))
			return err
		}},
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := withOutput(path, f.write); err != nil {
			return err
		}
		observability.RecordReport(f.format)
		log.Info("wrote report", "path", path)
	}
	return nil
}

// withOutput runs write against stdout ("-") or the named file.
func withOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
