package auditkit

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/varalys/auditkit/internal/checker"
	"github.com/varalys/auditkit/internal/config"
	"github.com/varalys/auditkit/internal/engine"
	"github.com/varalys/auditkit/internal/logging"
	"github.com/varalys/auditkit/internal/plugins"
	"github.com/varalys/auditkit/internal/report"
	"github.com/varalys/auditkit/internal/tester"
	"github.com/varalys/auditkit/internal/tester/httpprobe"
)

var (
	flagPath          string
	flagOut           string
	flagEnvFile       string
	flagEndpoints     []string
	flagTimeout       string
	flagInclude       string
	flagExclude       string
	flagMaxBytes      int64
	flagLatency       float64
	flagIncludePassed bool
	flagJSON          bool
	flagSARIF         bool
	flagTable         bool
	flagFailOn        string
	flagNoReport      bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all checkers and testers and write an audit report",
		RunE:  runAudit,
	}
	rootCmd.AddCommand(cmd)

	cmd.Flags().StringVarP(&flagPath, "path", "p", ".", "codebase to audit")
	cmd.Flags().StringVar(&flagOut, "out", "", "directory for the report artifact (default: target root)")
	cmd.Flags().StringVar(&flagEnvFile, "env-file", "", "dotenv file with live system settings (default: .env in target if present)")
	cmd.Flags().StringArrayVar(&flagEndpoints, "endpoint", nil, "live endpoint as name=url (repeatable)")
	cmd.Flags().StringVar(&flagTimeout, "timeout", "", "per-tester timeout (e.g. 30s)")
	cmd.Flags().StringVar(&flagInclude, "include", "", "comma-separated include globs")
	cmd.Flags().StringVar(&flagExclude, "exclude", "", "comma-separated exclude globs")
	cmd.Flags().Int64Var(&flagMaxBytes, "max-bytes", 0, "skip files larger than this (default 1MiB)")
	cmd.Flags().Float64Var(&flagLatency, "latency-threshold", 0, "fail endpoint probes slower than this many milliseconds")
	cmd.Flags().BoolVar(&flagIncludePassed, "include-passed", false, "list passing runtime checks in the report")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "emit JSON to stdout")
	cmd.Flags().BoolVar(&flagSARIF, "sarif", false, "emit SARIF 2.1.0 to stdout")
	cmd.Flags().BoolVar(&flagTable, "table", false, "emit a findings table to stdout (default)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "exit 1 on findings at or above low|medium|high|none (default high)")
	cmd.Flags().BoolVar(&flagNoReport, "no-report", false, "do not write the Markdown report artifact")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	abs, err := filepath.Abs(flagPath)
	if err != nil {
		return err
	}
	// CLI > local > global
	lcfg, gcfg, err := loadConfigs(abs)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(flagDebug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	target, err := checker.NewTarget(abs)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	target.IncludeGlobs = pickString(flagInclude, lcfg.Include, gcfg.Include)
	target.ExcludeGlobs = pickString(flagExclude, lcfg.Exclude, gcfg.Exclude)
	if mb := pickInt64(flagMaxBytes, lcfg.MaxBytes, gcfg.MaxBytes); mb > 0 {
		target.MaxBytes = mb
	}
	if lcfg.DefaultExcludes != nil {
		target.DefaultExcludes = *lcfg.DefaultExcludes
	} else if gcfg.DefaultExcludes != nil {
		target.DefaultExcludes = *gcfg.DefaultExcludes
	}

	sys, err := buildSystem(abs, lcfg, gcfg)
	if err != nil {
		return err
	}

	timeout, err := resolveTimeout(lcfg, gcfg)
	if err != nil {
		return err
	}
	overrides, err := mergeOverrides(gcfg, lcfg)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	tcfg := tester.Config{Timeout: timeout}
	if ms := pickFloat(flagLatency, lcfg.LatencyThresholdMS, gcfg.LatencyThresholdMS); ms > 0 {
		tcfg.Thresholds = map[string]float64{httpprobe.LatencyThreshold: ms}
	}

	checkers, testers := plugins.Builtin(plugins.Options{Log: log, Tester: tcfg})
	eng := engine.New(engine.Config{
		Threads:       pickInt(flagThreads, lcfg.Threads, gcfg.Threads),
		TesterTimeout: timeout,
		IncludePassed: pickBool(flagIncludePassed, lcfg.IncludePassed, gcfg.IncludePassed),
		Overrides:     overrides,
		Logger:        log,
	}, checkers, testers)

	quiet := flagJSON || flagSARIF
	if !quiet {
		_, _ = fmt.Fprintf(os.Stderr, "Auditing %s with %d checkers and %d testers...\n", abs, len(eng.Checkers()), len(eng.Testers()))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	r := eng.Run(ctx, target, sys)

	var reportPath string
	if !flagNoReport {
		outDir := pickString(flagOut, lcfg.OutDir, gcfg.OutDir)
		if outDir == "" {
			outDir = abs
		} else if !filepath.IsAbs(outDir) && flagOut == "" {
			outDir = filepath.Join(abs, outDir)
		}
		reportPath, err = report.WriteFile(outDir, r)
		if err != nil {
			return err
		}
		log.Debug("report written", zap.String("path", reportPath))
	}

	out := cmd.OutOrStdout()
	switch {
	case flagSARIF:
		if err := report.WriteSARIF(out, r, version); err != nil {
			return fmt.Errorf("sarif error: %w", err)
		}
	case flagJSON:
		if err := report.WriteJSON(out, r); err != nil {
			return err
		}
	default:
		if err := report.PrintTable(out, r, report.PrintOptions{
			NoColor:    noColor(pickBoolPtr(lcfg.NoColor, gcfg.NoColor)),
			Duration:   r.Stats.Duration,
			ReportPath: reportPath,
		}); err != nil {
			return err
		}
	}

	failOn := pickString(flagFailOn, lcfg.FailOn, gcfg.FailOn)
	if failOn == "" {
		failOn = "high"
	}
	if report.ShouldFail(r.Findings, failOn) {
		osExit(1)
	}
	return nil
}

// buildSystem assembles the live system handle from config endpoints,
// --endpoint flags and the env file. Flags win over config entries.
func buildSystem(root string, lcfg, gcfg config.FileConfig) (tester.System, error) {
	sys := tester.System{Name: filepath.Base(root), Endpoints: map[string]string{}}
	for name, url := range gcfg.Endpoints {
		sys.Endpoints[name] = url
	}
	for name, url := range lcfg.Endpoints {
		sys.Endpoints[name] = url
	}
	for _, kv := range flagEndpoints {
		name, url, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(url) == "" {
			return sys, fmt.Errorf("invalid --endpoint %q: want name=url", kv)
		}
		sys.Endpoints[strings.TrimSpace(name)] = strings.TrimSpace(url)
	}

	envFile := pickString(flagEnvFile, lcfg.EnvFile, gcfg.EnvFile)
	explicit := envFile != ""
	if envFile == "" {
		envFile = ".env"
	}
	if !filepath.IsAbs(envFile) && flagEnvFile == "" {
		envFile = filepath.Join(root, envFile)
	}
	if !fileExists(envFile) {
		if explicit {
			return sys, fmt.Errorf("env file not found: %s", envFile)
		}
		return sys, nil
	}
	env, err := godotenv.Read(envFile)
	if err != nil {
		return sys, fmt.Errorf("read env file: %w", err)
	}
	sys.Env = env
	return sys, nil
}

func resolveTimeout(lcfg, gcfg config.FileConfig) (d time.Duration, err error) {
	if flagTimeout != "" {
		s := flagTimeout
		return config.FileConfig{TesterTimeout: &s}.Timeout()
	}
	if d, err = lcfg.Timeout(); err != nil || d > 0 {
		return d, err
	}
	return gcfg.Timeout()
}

// mergeOverrides layers plugin overrides; entries from later configs replace
// earlier ones per plugin name.
func mergeOverrides(cfgs ...config.FileConfig) (map[string]engine.Override, error) {
	out := map[string]engine.Override{}
	for _, c := range cfgs {
		ov, err := c.Overrides()
		if err != nil {
			return nil, err
		}
		for name, o := range ov {
			out[name] = o
		}
	}
	return out, nil
}

func pickBoolPtr(local, global *bool) *bool {
	if local != nil {
		return local
	}
	return global
}
