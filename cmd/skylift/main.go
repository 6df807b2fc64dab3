package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"skylift/internal/app"
	"skylift/internal/config"
	"skylift/internal/deploy"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "deploy", "create").
func newApp(operation string) (*app.App, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	a, err := app.New(cfg, operation, verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	// Progress chatter is for humans at a terminal, not for CI logs.
	if term.IsTerminal(int(os.Stdout.Fd())) {
		a.OnProgress(func(msg string) {
			fmt.Println(msg)
		})
	}
	return a, nil
}

func readConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config (run skylift config init first): %w", err)
	}
	return cfg, defaults["config_path"], nil
}

var rootCmd = &cobra.Command{
	Use:   "skylift",
	Short: "Deploy static websites from the command line",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("API URL:  %s\n", cfg.API.URL)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		fmt.Println("Add your access token under [api] auth_token to authenticate.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, cfgPath, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", cfgPath)
		fmt.Printf("API URL:   %s\n", cfg.API.URL)
		fmt.Printf("Customer:  %s\n", cfg.API.CustomerID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Bucket:    %s (%s)\n", cfg.Deploy.Bucket, cfg.Deploy.Region)
		return nil
	},
}

// create command
var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Register a new website in the current directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("create")
		if err != nil {
			return err
		}
		defer a.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		site, err := a.CreateApp(cmd.Context(), cwd, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Website %s created\n", site.Name)
		fmt.Printf("App ID: %s\n", site.AppID)
		fmt.Printf("URL:    %s\n", site.URL)
		return nil
	},
}

// deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the website in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, _ := cmd.Flags().GetString("stage")
		directory, _ := cmd.Flags().GetString("directory")
		message, _ := cmd.Flags().GetString("message")
		commitURL, _ := cmd.Flags().GetString("commit-url")
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp("deploy")
		if err != nil {
			return err
		}
		defer a.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		version, err := a.Deploy(cmd.Context(), cwd, deploy.Options{
			Stage:     stage,
			Directory: directory,
			Message:   message,
			CommitURL: commitURL,
			Force:     force,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Version %s deployed\n", version.Name)
		if version.DeployedURL != "" {
			fmt.Printf("View it now: %s\n", version.DeployedURL)
		}
		return nil
	},
}

// bundle command
var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Package the website into a local tar.gz archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")

		a, err := newApp("bundle")
		if err != nil {
			return err
		}
		defer a.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		archivePath, err := a.Bundle(cmd.Context(), cwd, outDir)
		if err != nil {
			return err
		}

		fmt.Printf("Bundle written to %s\n", archivePath)
		return nil
	},
}

// rename command
var renameCmd = &cobra.Command{
	Use:   "rename NEWNAME",
	Short: "Rename the website in the current directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("rename")
		if err != nil {
			return err
		}
		defer a.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		site, err := a.RenameApp(cmd.Context(), cwd, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Website renamed to %s\n", site.Name)
		fmt.Printf("URL: %s\n", site.URL)
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the website in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("delete")
		if err != nil {
			return err
		}
		defer a.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		fmt.Print("This deletes the website and all deployed versions. Type yes to continue: ")
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading confirmation: %w", err)
		}
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}

		site, err := a.DeleteApp(cmd.Context(), cwd)
		if err != nil {
			return err
		}

		fmt.Printf("Website %s deleted\n", site.Name)
		return nil
	},
}

// versions command
var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List deployed versions of the website",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("versions")
		if err != nil {
			return err
		}
		defer a.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		versions, err := a.ListVersions(cmd.Context(), cwd)
		if err != nil {
			return err
		}

		if len(versions) == 0 {
			fmt.Println("No versions deployed.")
			return nil
		}

		for _, v := range versions {
			fmt.Printf("%s  %-10s  %d file(s)  %s\n",
				v.VersionID,
				v.Status,
				v.Metadata.FileCount,
				v.Name,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View local deploy history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history")
		if err != nil {
			return err
		}
		defer a.Close()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		records, err := a.History(cwd, limit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No deploys recorded.")
			return nil
		}

		for _, rec := range records {
			duration := rec.FinishedAt.Sub(rec.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("%s  %-12s  %-10s  %d file(s)  %s  %s\n",
				rec.StartedAt.Format("2006-01-02 15:04:05"),
				rec.Stage,
				rec.Status,
				rec.FileCount,
				duration,
				rec.DeployedURL,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Also log to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deployCmd)
	deployCmd.Flags().StringP("stage", "s", "", "Deploy stage (default production)")
	deployCmd.Flags().StringP("directory", "d", "", "Sub-directory to deploy")
	deployCmd.Flags().StringP("message", "m", "", "Deploy message")
	deployCmd.Flags().String("commit-url", "", "Source commit URL to record with the version")
	deployCmd.Flags().BoolP("force", "f", false, "Skip pre-deploy asset checks")
	rootCmd.AddCommand(bundleCmd)
	bundleCmd.Flags().StringP("out", "o", "", "Directory to write the archive to")
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of deploys to show")
}
