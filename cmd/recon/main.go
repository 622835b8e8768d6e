package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/allsafeASM/intel/internal/app"
	"github.com/allsafeASM/intel/internal/common"
	"github.com/allsafeASM/intel/internal/config"
	"github.com/allsafeASM/intel/internal/models"
	"github.com/allsafeASM/intel/internal/present"
	"github.com/allsafeASM/intel/internal/utils"
	"github.com/allsafeASM/intel/internal/validation"
	"github.com/olekukonko/tablewriter"
	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
)

type options struct {
	Target     string
	TargetList string
	Type       string

	Gateway      string
	SaveGateway  string
	SaveAPIKey   string
	ClearGateway bool
	ClearAPIKey  bool
	Ping         bool

	History      bool
	ClearHistory bool
	Stats        bool

	ExportDir   string
	StdoutJSON  bool
	ExportBlob  bool
	ListExports bool

	ConfigPath string
	Timeout    time.Duration
	NoColor    bool
}

func parseOptions() *options {
	opts := &options{}

	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription("recon scans a domain or IP address through the intelligence gateway.")

	flagSet.CreateGroup("input", "Input",
		flagSet.StringVarP(&opts.Target, "target", "t", "", "domain or IP address to scan"),
		flagSet.StringVarP(&opts.TargetList, "list", "l", "", "file with one target per line, scanned one after another"),
		flagSet.StringVar(&opts.Type, "type", "auto", "target type (domain, ip, auto)"),
	)
	flagSet.CreateGroup("connection", "Connection",
		flagSet.StringVarP(&opts.Gateway, "gateway", "g", "", "gateway URL for this run, e.g. http://localhost:8787/proxy"),
		flagSet.StringVar(&opts.SaveGateway, "save-gateway", "", "save the gateway URL for later runs"),
		flagSet.BoolVar(&opts.ClearGateway, "clear-gateway", false, "forget the saved gateway URL"),
		flagSet.StringVar(&opts.SaveAPIKey, "save-api-key", "", "save an API key for direct access (not recommended)"),
		flagSet.BoolVar(&opts.ClearAPIKey, "clear-api-key", false, "forget the saved API key"),
		flagSet.BoolVar(&opts.Ping, "ping", false, "check connectivity to the API"),
		flagSet.DurationVar(&opts.Timeout, "timeout", 0, "per-request timeout (overrides config)"),
	)
	flagSet.CreateGroup("history", "History",
		flagSet.BoolVar(&opts.History, "history", false, "show recent scans"),
		flagSet.BoolVar(&opts.ClearHistory, "clear-history", false, "clear scan history"),
		flagSet.BoolVar(&opts.Stats, "stats", false, "show scan statistics"),
	)
	flagSet.CreateGroup("output", "Output",
		flagSet.StringVarP(&opts.ExportDir, "export-dir", "o", "", "write the scan as JSON into this directory"),
		flagSet.BoolVar(&opts.StdoutJSON, "stdout-json", false, "print the scan as JSON instead of tables"),
		flagSet.BoolVar(&opts.ExportBlob, "export-blob", false, "upload the scan to Azure Blob Storage"),
		flagSet.BoolVar(&opts.ListExports, "list-exports", false, "list exports uploaded to Azure Blob Storage"),
		flagSet.BoolVarP(&opts.NoColor, "no-color", "nc", false, "disable colors"),
	)
	flagSet.CreateGroup("config", "Configuration",
		flagSet.StringVarP(&opts.ConfigPath, "config", "c", "recon.yaml", "client config file"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("Could not parse flags: %v", err)
	}

	return opts
}

func main() {
	opts := parseOptions()

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		gologger.Fatal().Msgf("Configuration error: %v", err)
	}

	ctx, cancel := app.SignalContext(context.Background())
	defer cancel()

	session, err := app.NewSession(ctx, cfg, app.Options{GatewayURL: opts.Gateway, Timeout: opts.Timeout})
	if err != nil {
		gologger.Fatal().Msgf("Failed to initialize: %v", err)
	}

	code := run(ctx, session, opts)
	session.Close(context.Background())
	os.Exit(code)
}

func run(ctx context.Context, session *app.Session, opts *options) int {
	ranCommand := false

	if opts.SaveGateway != "" || opts.ClearGateway {
		ranCommand = true
		if err := session.SaveGatewayURL(ctx, opts.SaveGateway); err != nil {
			gologger.Error().Msgf("Could not save gateway: %v", err)
			return 1
		}
		if opts.ClearGateway {
			gologger.Info().Msg("Saved gateway URL cleared")
		} else {
			gologger.Info().Msgf("Gateway saved: %s", opts.SaveGateway)
		}
	}

	if opts.SaveAPIKey != "" || opts.ClearAPIKey {
		ranCommand = true
		if err := session.SaveAPIKey(ctx, opts.SaveAPIKey); err != nil {
			gologger.Error().Msgf("Could not save API key: %v", err)
			return 1
		}
		gologger.Info().Msg("API key setting updated")
	}

	if opts.ClearHistory {
		ranCommand = true
		if err := session.ClearHistory(ctx); err != nil {
			gologger.Error().Msgf("Could not clear history: %v", err)
			return 1
		}
		gologger.Info().Msg("History cleared")
	}

	if opts.Ping {
		ranCommand = true
		msg, err := session.Ping(ctx)
		if err != nil {
			gologger.Error().Msgf("Ping failed: %s", common.UserMessage(err))
			return 1
		}
		gologger.Info().Msgf("Connected (%s): %s", session.Mode(), msg)
	}

	if opts.History {
		ranCommand = true
		printHistory(session.History())
	}

	if opts.Stats {
		ranCommand = true
		printStats(session.Stats())
	}

	if opts.ListExports {
		ranCommand = true
		names, err := session.ListExports(ctx)
		if err != nil {
			gologger.Error().Msgf("Could not list exports: %s", common.UserMessage(err))
			return 1
		}
		for _, name := range names {
			fmt.Println(name)
		}
	}

	targets, err := collectTargets(opts)
	if err != nil {
		gologger.Error().Msgf("%v", err)
		return 2
	}
	if len(targets) == 0 {
		if !ranCommand {
			gologger.Error().Msg("No target given. Use -target <domain|ip> or -h for help.")
			return 2
		}
		return 0
	}

	code := 0
	for _, target := range targets {
		if ctx.Err() != nil {
			return 130
		}
		if rc := scanTarget(ctx, session, opts, target); rc != 0 {
			code = rc
		}
	}
	return code
}

func collectTargets(opts *options) ([]string, error) {
	var targets []string
	if opts.Target != "" {
		targets = append(targets, opts.Target)
	}
	if opts.TargetList != "" {
		fromFile, err := utils.ReadTargetsFromFile(opts.TargetList)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}
	return targets, nil
}

func scanTarget(ctx context.Context, session *app.Session, opts *options, target string) int {
	kind, err := resolveKind(opts.Type, target)
	if err != nil {
		gologger.Error().Msgf("%v", err)
		return 2
	}

	gologger.Info().Msgf("Scanning %s (%s) in %s mode", target, kind, session.Mode())
	report, err := session.RunScan(ctx, target, kind)
	if err != nil {
		gologger.Error().Msgf("Scan failed: %v", err)
		return 1
	}

	if opts.StdoutJSON {
		if err := session.ExportTo(os.Stdout, report); err != nil {
			gologger.Error().Msgf("Could not write JSON: %v", err)
			return 1
		}
	} else {
		renderer := present.NewRenderer(opts.NoColor)
		header := fmt.Sprintf("Results for %s (%s)", report.Target.Value, report.Target.Kind)
		if err := renderer.Render(os.Stdout, header, present.Present(report.Result, report.Target)); err != nil {
			gologger.Error().Msgf("Could not render results: %v", err)
			return 1
		}
	}

	if opts.ExportDir != "" {
		path, err := session.ExportFile(report, opts.ExportDir)
		if err != nil {
			gologger.Error().Msgf("Export failed: %v", err)
			return 1
		}
		gologger.Info().Msgf("Saved %s", path)
	}

	if opts.ExportBlob {
		name, err := session.ExportBlob(ctx, report)
		if err != nil {
			gologger.Error().Msgf("Blob export failed: %s", common.UserMessage(err))
			return 1
		}
		gologger.Info().Msgf("Uploaded %s", name)
	}

	return 0
}

func resolveKind(typeFlag, target string) (models.Kind, error) {
	if strings.EqualFold(typeFlag, "auto") || typeFlag == "" {
		return validation.DetectKind(target), nil
	}
	kind := models.ParseKind(typeFlag)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid -type %q, expected domain, ip or auto", typeFlag)
	}
	return kind, nil
}

func printHistory(history []models.HistoryEntry) {
	if len(history) == 0 {
		fmt.Println("No scans yet")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Target", "Type", "Scanned"})
	for _, h := range history {
		table.Append([]string{h.Target, string(h.Kind), h.Timestamp.Local().Format(time.DateTime)})
	}
	table.Render()
}

func printStats(stats models.Stats) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Total", "Success", "Failed", "Domains"})
	table.Append([]string{
		fmt.Sprint(stats.Total),
		fmt.Sprint(stats.Success),
		fmt.Sprint(stats.Failed),
		fmt.Sprint(stats.DomainsScanned),
	})
	table.Render()
}
