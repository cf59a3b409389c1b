package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aegis-scan/aegis/pkg/config"
	"github.com/aegis-scan/aegis/pkg/engine"
	"github.com/aegis-scan/aegis/pkg/engine/policy"
	"github.com/aegis-scan/aegis/pkg/scan"
	"github.com/aegis-scan/aegis/pkg/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile           string
	cliConfig         engine.Config
	credentialFile    string
	requestedServices string
	anthropicAPIKey   string
	rulesDir          string
	kubeconfigPath    string
	triageRulesFile   string
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Multi-tenant GCP cloud security posture scanner",
	Long: `Aegis - Cloud Security Posture Platform

Discover. Correlate. Remediate.`,
	Version: version.Current,
	Run:     nil,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	cliConfig.Scan = config.DefaultScanConfig()
	cliConfig.Risk = config.DefaultRiskConfig()

	rootCmd.PersistentFlags().StringVar(&cliConfig.AccountID, "account", "", "Logical account name for this scan")
	rootCmd.PersistentFlags().StringVar(&cliConfig.ProjectID, "project", "", "GCP project ID to scan")
	rootCmd.PersistentFlags().StringVar(&credentialFile, "credentials", "", "Path to a GCP service account JSON key")
	rootCmd.PersistentFlags().StringVar(&requestedServices, "services", "", "Services to scan (comma-separated: firewall,compute,storage,sql)")
	rootCmd.PersistentFlags().StringVar(&rulesDir, "rules-dir", "", "Directory of HCL remediation rule templates")
	rootCmd.PersistentFlags().StringVar(&triageRulesFile, "triage-rules", "", "YAML file of CEL triage rules applied to correlated findings")
	rootCmd.PersistentFlags().StringVar(&kubeconfigPath, "kubeconfig", "", "Path to a kubeconfig for GKE node-pool discovery (default: in-cluster config)")
	rootCmd.PersistentFlags().StringVar(&cliConfig.SlackWebhook, "slack-webhook", "", "Slack webhook URL for scan completion alerts")
	rootCmd.PersistentFlags().StringVar(&cliConfig.SlackChannel, "slack-channel", "", "Slack channel override")
	rootCmd.PersistentFlags().BoolVarP(&cliConfig.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&cliConfig.JsonLogs, "json", false, "Emit structured JSON logs instead of the TUI")
	rootCmd.PersistentFlags().BoolVar(&cliConfig.Headless, "headless", false, "Run without the interactive TUI (CI/CD mode)")
	rootCmd.PersistentFlags().IntVar(&cliConfig.MaxConcurrency, "concurrency", 0, "Max concurrent scan workers (0 = engine default)")
	rootCmd.PersistentFlags().BoolVar(&cliConfig.StrictMode, "strict", false, "Fail the run on any partial scan result")
	rootCmd.PersistentFlags().StringVar(&cliConfig.OtelEndpoint, "otel-endpoint", "", "OTLP collector endpoint for traces")
	rootCmd.PersistentFlags().BoolVar(&cliConfig.SkipTelemetry, "no-telemetry", false, "Disable OpenTelemetry export")
	rootCmd.PersistentFlags().StringVar(&anthropicAPIKey, "anthropic-api-key", "", "Anthropic API key for the Threat Pipeline's LLM stages")

	viper.BindPFlag("account", rootCmd.PersistentFlags().Lookup("account"))
	viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("credentials", rootCmd.PersistentFlags().Lookup("credentials"))
	viper.BindPFlag("services", rootCmd.PersistentFlags().Lookup("services"))
	viper.BindPFlag("rules_dir", rootCmd.PersistentFlags().Lookup("rules-dir"))
	viper.BindPFlag("triage_rules", rootCmd.PersistentFlags().Lookup("triage-rules"))
	viper.BindPFlag("kubeconfig", rootCmd.PersistentFlags().Lookup("kubeconfig"))
	viper.BindPFlag("slack_webhook", rootCmd.PersistentFlags().Lookup("slack-webhook"))
	viper.BindPFlag("slack_channel", rootCmd.PersistentFlags().Lookup("slack-channel"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("headless", rootCmd.PersistentFlags().Lookup("headless"))
	viper.BindPFlag("concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("strict", rootCmd.PersistentFlags().Lookup("strict"))
	viper.BindPFlag("otel_endpoint", rootCmd.PersistentFlags().Lookup("otel-endpoint"))
	viper.BindPFlag("no_telemetry", rootCmd.PersistentFlags().Lookup("no-telemetry"))
	viper.BindPFlag("anthropic_api_key", rootCmd.PersistentFlags().Lookup("anthropic-api-key"))

	rootCmd.PersistentFlags().BoolVar(&cliConfig.MockMode, "mock", false, "Run against the built-in mock discovery provider")
	rootCmd.PersistentFlags().MarkHidden("mock")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Name() == "help" || cmd.Name() == "scan" || cmd.Name() == "update" {
			checkUpdate()
		}

		cliConfig.AccountID = viper.GetString("account")
		cliConfig.ProjectID = viper.GetString("project")
		credentialFile = viper.GetString("credentials")
		requestedServices = viper.GetString("services")
		rulesDir = viper.GetString("rules_dir")
		kubeconfigPath = viper.GetString("kubeconfig")
		cliConfig.Scan.KubeconfigPath = kubeconfigPath
		triageRulesFile = viper.GetString("triage_rules")
		cliConfig.SlackWebhook = viper.GetString("slack_webhook")
		cliConfig.SlackChannel = viper.GetString("slack_channel")
		cliConfig.Verbose = viper.GetBool("verbose")
		cliConfig.JsonLogs = viper.GetBool("json_logs")
		cliConfig.Headless = viper.GetBool("headless")
		cliConfig.MaxConcurrency = viper.GetInt("concurrency")
		cliConfig.StrictMode = viper.GetBool("strict")
		cliConfig.OtelEndpoint = viper.GetString("otel_endpoint")
		cliConfig.SkipTelemetry = viper.GetBool("no_telemetry")
		anthropicAPIKey = viper.GetString("anthropic_api_key")
		cliConfig.AnthropicAPIKey = anthropicAPIKey

		if requestedServices != "" {
			cliConfig.RequestedServices = strings.Split(requestedServices, ",")
		}

		if credentialFile != "" {
			if data, err := os.ReadFile(credentialFile); err == nil {
				cliConfig.Credential = buildCredential(cliConfig.ProjectID, string(data))
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not read credential file %s: %v\n", credentialFile, err)
			}
		}

		if triageRulesFile != "" {
			rules, err := policy.LoadRulesFile(triageRulesFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not load triage rules file %s: %v\n", triageRulesFile, err)
			} else {
				cliConfig.Scan.TriageRules = rules
			}
		}
	}

	rootCmd.AddCommand(ExportCmd)
}

// buildCredential wraps a service account key's JSON bytes into the
// scan.Credential the engine's discovery layer expects.
func buildCredential(projectID, jsonKey string) scan.Credential {
	return scan.Credential{ProjectID: projectID, JSON: jsonKey}
}

func checkUpdate() {
	latest, err := fetchLatestVersion()
	if err == nil && strings.TrimSpace(latest) > version.Current {
		fmt.Printf("\n[UPDATE] Available: %s -> %s\nRun 'aegis check-update' for upgrade instructions.\n\n", version.Current, latest)
	}
}

func initConfig() {
	viper.SetConfigName("aegis")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.aegis")

	viper.SetEnvPrefix("AEGIS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		// Config loaded successfully.
	}
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Println(titleStyle.Render(fmt.Sprintf("AEGIS %s", version.Current)))
	fmt.Println("Multi-tenant GCP cloud security posture scanner.")

	fmt.Println(titleStyle.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	fmt.Println(titleStyle.Render("COMMANDS"))
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
		}
	}
	fmt.Println("")

	fmt.Println(titleStyle.Render("EXAMPLES"))
	fmt.Println("  aegis scan --project my-gcp-project           # Interactive mode (TUI)")
	fmt.Println("  aegis scan --headless --project ... --json    # CI/CD mode (no TUI)")
	fmt.Println("")

	fmt.Println(titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(flagStyle.Render(output))
	})
	fmt.Println("")
}

func safeWriteConfig() {
	if err := viper.SafeWriteConfig(); err != nil {
		if err2 := viper.WriteConfig(); err2 != nil {
			path := viper.ConfigFileUsed()
			if path != "" {
				f, createErr := os.Create(path)
				if createErr == nil {
					f.Close()
					viper.WriteConfig()
				} else {
					fmt.Printf("Error creating config file: %v\n", createErr)
				}
			} else {
				home, _ := os.UserHomeDir()
				path = filepath.Join(home, ".aegis.yaml")
				f, _ := os.Create(path)
				f.Close()
				viper.SetConfigFile(path)
				viper.WriteConfig()
			}
		}
	}
}
