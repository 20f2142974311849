package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/oplog"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"github.com/fenilsonani/reclaim/pkg/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	categories     []string
	dryRun         bool
	assumeYes      bool
	noRunningCheck bool
	servicesOnly   bool
	cleanOrphans   bool
	treeDepth      int
	tailLines      int
	failedOnly     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for reclaimable space",
	Long:  `Scans the configured targets and reports what could be reclaimed without changing anything.`,
	RunE: run(func(ctx context.Context, a *app) error {
		session, err := a.scan(ctx, categories)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return a.out.Session(session)
	}),
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Scan and remove reclaimable items",
	Long: `Scans the configured targets, then moves the results to the trash. Items that need
administrator access are removed after a single prompt per batch.`,
	RunE: run(func(ctx context.Context, a *app) error {
		session, err := a.scan(ctx, categories)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if len(session.Items()) == 0 {
			fmt.Println("Nothing to clean.")
			return nil
		}
		session.SelectAll(true)

		if err := a.out.Session(session); err != nil {
			return err
		}

		dry := dryRun || a.cfg.Clean.DryRun
		if !dry && !assumeYes {
			if !confirm(fmt.Sprintf("\nMove %d items (%s) to the trash?", len(session.Items()), utils.FormatBytes(session.TotalSize()))) {
				fmt.Println("Cleanup cancelled")
				return nil
			}
		}

		checkRunning := a.cfg.Clean.CheckRunning && !noRunningCheck
		outcome := a.cleaner(checkRunning).CleanCategories(ctx, session.Categories, dry)
		if err := a.out.Outcome(outcome); err != nil {
			return err
		}
		return ctx.Err()
	}),
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Find data left behind by uninstalled applications",
	Long: `Lists per-application data whose application is neither installed nor running and
that has not been touched for the configured inactivity period.`,
	RunE: run(func(ctx context.Context, a *app) error {
		c, err := a.correlator()
		if err != nil {
			return err
		}

		var items []scanner.DiscoveredItem
		title := "Orphaned application data"
		if servicesOnly {
			title = "Orphaned auto-start services"
			items, err = c.ScanServices(ctx)
		} else {
			items, err = c.Scan(ctx)
		}
		if err != nil {
			return fmt.Errorf("orphan scan failed: %w", err)
		}

		if err := a.out.Items(title, items); err != nil {
			return err
		}
		if !cleanOrphans || len(items) == 0 {
			return nil
		}

		if !dryRun && !assumeYes && !confirm(fmt.Sprintf("\nRemove %d orphaned items?", len(items))) {
			fmt.Println("Cleanup cancelled")
			return nil
		}
		checkRunning := a.cfg.Clean.CheckRunning && !noRunningCheck
		return a.out.Outcome(a.cleaner(checkRunning).Clean(ctx, items, dryRun))
	}),
}

var treeCmd = &cobra.Command{
	Use:   "tree <path>",
	Short: "Show a directory tree by size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app) error {
			depth := treeDepth
			if !cmd.Flags().Changed("depth") {
				depth = a.cfg.Scan.TreeDepth
			}
			tree, err := a.engine.BuildTree(ctx, a.policy.ExpandHome(args[0]), depth)
			if err != nil {
				return err
			}
			return a.out.Tree(tree)
		})(cmd, args)
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size <path>...",
	Short: "Print the total size of paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app) error {
			for _, p := range args {
				size, err := a.engine.Size(ctx, a.policy.ExpandHome(p))
				if err != nil {
					return err
				}
				fmt.Printf("%10s  %s\n", utils.FormatBytes(size), p)
			}
			return nil
		})(cmd, args)
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect or empty the trash",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trash entries",
	RunE: run(func(ctx context.Context, a *app) error {
		entries, err := a.trash().List(ctx)
		if err != nil {
			return err
		}
		var total int64
		for _, e := range entries {
			fmt.Printf("%10s  %s\n", utils.FormatBytes(e.Size), e.Name)
			total += e.Size
		}
		fmt.Printf("%d entries, %s\n", len(entries), utils.FormatBytes(total))
		return nil
	}),
}

var trashEmptyCmd = &cobra.Command{
	Use:   "empty",
	Short: "Permanently delete everything in the trash",
	RunE: run(func(ctx context.Context, a *app) error {
		if !dryRun && !assumeYes && !confirm("Permanently delete everything in the trash?") {
			fmt.Println("Cancelled")
			return nil
		}
		outcome, err := a.cleaner(false).EmptyTrash(ctx, dryRun)
		if err != nil {
			return err
		}
		return a.out.Outcome(outcome)
	}),
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show or clear the operation log",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the last operation log entries",
	RunE: run(func(ctx context.Context, a *app) error {
		lines, err := a.operationLog().Tail(tailLines)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if failedOnly {
				e, err := oplog.ParseEntry(line)
				if err != nil || e.Success {
					continue
				}
			}
			fmt.Println(line)
		}
		return nil
	}),
}

var logClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the operation log and its backup",
	RunE: run(func(ctx context.Context, a *app) error {
		if !assumeYes && !confirm("Delete the operation log?") {
			fmt.Println("Cancelled")
			return nil
		}
		if err := a.operationLog().Clear(); err != nil {
			return err
		}
		fmt.Println("Operation log cleared")
		return nil
	}),
}

var logPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the operation log location",
	RunE: run(func(ctx context.Context, a *app) error {
		fmt.Println(a.operationLog().Path())
		return nil
	}),
}

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage protection rules",
	Long: `Lists, adds and removes your protection rules. Kinds are paths, app_ids,
cache_names and orphan_ids. Built-in rules are always in force and cannot be removed.`,
	RunE: run(func(ctx context.Context, a *app) error {
		return printRules(a.policy)
	}),
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <kind> <value>",
	Short: "Add a protection rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app) error {
			kind, err := security.ParseRuleKind(args[0])
			if err != nil {
				return err
			}
			if err := a.policy.AddUser(kind, args[1]); err != nil {
				return err
			}
			return a.saveRules()
		})(cmd, args)
	},
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <kind> <value>",
	Short: "Remove a protection rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app) error {
			kind, err := security.ParseRuleKind(args[0])
			if err != nil {
				return err
			}
			if err := a.policy.RemoveUser(kind, args[1]); err != nil {
				if errors.Is(err, security.ErrBuiltinRule) {
					return fmt.Errorf("%w; built-in rules are always in force", err)
				}
				return err
			}
			return a.saveRules()
		})(cmd, args)
	},
}

func (a *app) saveRules() error {
	a.cfg.Whitelist = a.policy.UserRules()
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(a.cfg, a.cfgPath); err != nil {
		return err
	}
	fmt.Printf("Saved to %s\n", a.cfgPath)
	return nil
}

func printRules(p *security.Policy) error {
	builtin, user := p.BuiltinRules(), p.UserRules()
	sections := []struct {
		kind           security.RuleKind
		builtin, users []string
	}{
		{security.RulePath, builtin.Paths, user.Paths},
		{security.RuleAppID, builtin.AppIDs, user.AppIDs},
		{security.RuleCacheName, builtin.CacheNames, user.CacheNames},
		{security.RuleOrphanID, builtin.OrphanIDs, user.OrphanIDs},
	}
	for _, s := range sections {
		fmt.Printf("%s:\n", s.kind)
		for _, v := range s.builtin {
			fmt.Printf("  %s (built-in)\n", v)
		}
		for _, v := range s.users {
			fmt.Printf("  %s\n", v)
		}
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display current configuration",
	RunE: run(func(ctx context.Context, a *app) error {
		fmt.Printf("# Config file: %s\n", a.cfgPath)
		if _, err := os.Stat(a.cfgPath); os.IsNotExist(err) {
			fmt.Println("# File does not exist; showing defaults. Run 'reclaim config init' to create it.")
		}
		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(a.cfg)
	}),
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		created, err := config.EnsureConfigExists(path)
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("%s already exists\n", path)
			return nil
		}
		fmt.Printf("Created %s\n", path)
		return nil
	},
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print a commented example configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(strings.TrimLeft(config.GetExampleConfig(), "\n"))
	},
}

func init() {
	scanCmd.Flags().StringSliceVar(&categories, "category", nil, "scan only these categories")

	cleanCmd.Flags().StringSliceVar(&categories, "category", nil, "clean only these categories")
	cleanCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be removed without removing anything")
	cleanCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	cleanCmd.Flags().BoolVar(&noRunningCheck, "no-running-check", false, "do not skip data of running applications")

	orphansCmd.Flags().BoolVar(&servicesOnly, "services", false, "look for orphaned auto-start services instead of data")
	orphansCmd.Flags().BoolVar(&cleanOrphans, "clean", false, "remove what was found")
	orphansCmd.Flags().BoolVar(&dryRun, "dry-run", false, "with --clean, show what would be removed")
	orphansCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	orphansCmd.Flags().BoolVar(&noRunningCheck, "no-running-check", false, "do not skip data of running applications")

	treeCmd.Flags().IntVar(&treeDepth, "depth", config.DefaultTreeDepth, "levels to list")

	trashEmptyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be deleted")
	trashEmptyCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	trashCmd.AddCommand(trashListCmd, trashEmptyCmd)

	logTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 20, "number of entries")
	logTailCmd.Flags().BoolVar(&failedOnly, "failed", false, "only failed operations")
	logClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompts")
	logCmd.AddCommand(logTailCmd, logClearCmd, logPathCmd)

	whitelistCmd.AddCommand(whitelistAddCmd, whitelistRemoveCmd)

	configCmd.AddCommand(configInitCmd, configExampleCmd)
}
