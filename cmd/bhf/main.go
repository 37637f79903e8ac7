package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"bhf-go/internal/app"
	"bhf-go/internal/bhf"
	"bhf-go/internal/config"
	"bhf-go/internal/database"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a BHFApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.BHFApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewBHFApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readConfig loads the config without constructing the app. Used by commands
// that must run before the database schema exists.
func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	return config.ReadFromFile(defaults["config_path"])
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

// openInput returns the input source for a command: the named file, or
// stdin when no argument was given.
func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 {
		return os.Stdin, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	return f, nil
}

// openOutput returns the output sink for a command: the named file, or
// stdout when outPath is empty.
func openOutput(outPath string) (io.WriteCloser, error) {
	if outPath == "" {
		return os.Stdout, nil
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("creating output: %w", err)
	}
	return f, nil
}

func closeQuietly(c io.Closer) {
	if c != os.Stdin && c != os.Stdout {
		c.Close()
	}
}

var rootCmd = &cobra.Command{
	Use:   "bhf",
	Short: "Backup history formatter for SQL Server restore planning",
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

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:       %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

// keys command

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage export encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetupKeys")
		if err != nil {
			return err
		}
		defer a.Close()

		pass, err := readPassphrase("Passphrase for private key: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupKeys(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Key pair generated")
		return nil
	},
}

// db command

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the history store",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the history store schema up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}
		return migrateDatabase(cfg)
	},
}

// migrateDatabase opens the store directly, bypassing the schema check the
// app layer performs, so migrations can run against a fresh database.
func migrateDatabase(cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	fmt.Println("History store schema is up to date")
	return nil
}

// import command

var importCmd = &cobra.Command{
	Use:   "import [FILE]",
	Short: "Import backup history records",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypted, _ := cmd.Flags().GetBool("encrypted")

		a, err := newApp("Import")
		if err != nil {
			return err
		}
		defer a.Close()

		in, err := openInput(args)
		if err != nil {
			return err
		}
		defer closeQuietly(in)

		passphrase := ""
		if encrypted {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		count, err := a.Import(in, encrypted, passphrase)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Printf("Imported %d record(s)\n", count)
		return nil
	},
}

// history command

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored backup history",
	RunE: func(cmd *cobra.Command, args []string) error {
		databaseName, _ := cmd.Flags().GetString("database")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.History(databaseName, limit)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No history found.")
			return nil
		}

		for _, rec := range records {
			verified := " "
			if rec.IsVerified {
				verified = "V"
			}
			fmt.Printf("%s %-22s %-20s %d file(s)\n", verified, rec.Type, rec.Database, len(rec.FileList))
		}
		return nil
	},
}

// format command

var formatCmd = &cobra.Command{
	Use:   "format [FILE]",
	Short: "Rewrite backup history for restore planning",
	Long: `Format applies renaming and relocation rules to backup history records.
Records come from FILE (or stdin), or from the history store with --database.
The rewritten records are written as JSON; per-record status goes to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		databaseName, _ := cmd.Flags().GetString("database")
		outPath, _ := cmd.Flags().GetString("output")

		a, err := newApp("Format")
		if err != nil {
			return err
		}
		defer a.Close()

		opts, err := formatOptionsFromFlags(cmd, a.Config().Format)
		if err != nil {
			return err
		}

		out, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer closeQuietly(out)

		var report *bhf.Report
		if databaseName != "" {
			report, err = a.FormatStored(databaseName, out, opts)
		} else {
			var in io.ReadCloser
			in, err = openInput(args)
			if err != nil {
				return err
			}
			defer closeQuietly(in)
			report, err = a.FormatInput(in, out, opts)
		}
		if err != nil {
			return err
		}

		printReport(report)
		return nil
	},
}

// printReport writes one status line per record to stderr.
func printReport(report *bhf.Report) {
	for _, res := range report.Results {
		name := "?"
		if res.Record != nil && res.Record.Database != "" {
			name = res.Record.Database
		}
		if res.Status == bhf.StatusSkipped {
			fmt.Fprintf(os.Stderr, "%-12s %s: %v\n", res.Status, name, res.Err)
		} else {
			fmt.Fprintf(os.Stderr, "%-12s %s\n", res.Status, name)
		}
	}
	transformed, unchanged, skipped := report.Counts()
	fmt.Fprintf(os.Stderr, "%d transformed, %d unchanged, %d skipped\n", transformed, unchanged, skipped)
}

// formatOptionsFromFlags builds FormatOptions from the command flags,
// falling back to configured defaults for unset directory flags.
func formatOptionsFromFlags(cmd *cobra.Command, defaults config.FormatConfig) (bhf.FormatOptions, error) {
	var opts bhf.FormatOptions

	renames, _ := cmd.Flags().GetStringArray("replace-database-name")
	rename, err := parseRenameRule(renames)
	if err != nil {
		return opts, err
	}
	opts.Rename = rename

	opts.DatabaseNamePrefix, _ = cmd.Flags().GetString("database-name-prefix")
	opts.DatabaseFilePrefix, _ = cmd.Flags().GetString("file-prefix")
	opts.DatabaseFileSuffix, _ = cmd.Flags().GetString("file-suffix")
	opts.ReplaceDBNameInFile, _ = cmd.Flags().GetBool("replace-db-name-in-file")

	opts.DataFileDirectory = flagOrDefault(cmd, "data-file-directory", defaults.DataFileDirectory)
	opts.LogFileDirectory = flagOrDefault(cmd, "log-file-directory", defaults.LogFileDirectory)
	opts.FileStreamDirectory = flagOrDefault(cmd, "file-stream-directory", defaults.FileStreamDirectory)
	opts.RebaseBackupFolder = flagOrDefault(cmd, "rebase-backup-folder", defaults.RebaseBackupFolder)
	opts.PathSeparator = flagOrDefault(cmd, "path-separator", defaults.PathSeparator)

	mappings, _ := cmd.Flags().GetStringArray("file-mapping")
	if len(mappings) > 0 {
		opts.FileMapping = make(map[string]string, len(mappings))
		for _, m := range mappings {
			logical, target, ok := strings.Cut(m, "=")
			if !ok {
				return opts, fmt.Errorf("invalid file mapping %q: expected LOGICAL=PATH", m)
			}
			opts.FileMapping[logical] = target
		}
	}

	return opts, nil
}

// parseRenameRule interprets --replace-database-name values. A single value
// without "=" renames every record; OLD=NEW pairs build a rename map. The
// two forms cannot be mixed.
func parseRenameRule(values []string) (bhf.RenameRule, error) {
	if len(values) == 0 {
		return nil, nil
	}

	mapped := bhf.MappedRename{}
	single := ""
	for _, v := range values {
		if old, next, ok := strings.Cut(v, "="); ok {
			mapped[old] = next
		} else {
			if single != "" {
				return nil, fmt.Errorf("multiple single replacement names given")
			}
			single = v
		}
	}

	switch {
	case single != "" && len(mapped) > 0:
		return nil, fmt.Errorf("cannot mix a single replacement name with OLD=NEW pairs")
	case single != "":
		return bhf.SingleRename(single), nil
	default:
		return mapped, nil
	}
}

func flagOrDefault(cmd *cobra.Command, name, fallback string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return fallback
}

// verify command

var verifyCmd = &cobra.Command{
	Use:   "verify [FILE]",
	Short: "Check backup files against the vault",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		databaseName, _ := cmd.Flags().GetString("database")
		outPath, _ := cmd.Flags().GetString("output")

		a, err := newApp("Verify")
		if err != nil {
			return err
		}
		defer a.Close()

		if databaseName != "" {
			verified, err := a.VerifyStored(databaseName)
			if err != nil {
				return fmt.Errorf("verify failed: %w", err)
			}
			fmt.Printf("Verified %d record(s)\n", verified)
			return nil
		}

		in, err := openInput(args)
		if err != nil {
			return err
		}
		defer closeQuietly(in)

		out, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer closeQuietly(out)

		verified, err := a.VerifyInput(in, out)
		if err != nil {
			return fmt.Errorf("verify failed: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Verified %d record(s)\n", verified)
		return nil
	},
}

// fetch command

var fetchCmd = &cobra.Command{
	Use:   "fetch [FILE]",
	Short: "Download backup files from the vault",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		databaseName, _ := cmd.Flags().GetString("database")
		destDir, _ := cmd.Flags().GetString("dest")

		a, err := newApp("Fetch")
		if err != nil {
			return err
		}
		defer a.Close()

		if databaseName != "" {
			paths, err := a.FetchStored(databaseName, destDir)
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		}

		in, err := openInput(args)
		if err != nil {
			return err
		}
		defer closeQuietly(in)

		paths, err := a.FetchInput(in, destDir)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}

// export command

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored history as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		outPath, _ := cmd.Flags().GetString("out")

		a, err := newApp("Export")
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := openOutput(outPath)
		if err != nil {
			return err
		}
		defer closeQuietly(out)

		if err := a.Export(out, encrypt); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		return nil
	},
}

// ops command

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List the operation audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("Ops")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.Operations(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}
		for _, op := range ops {
			fmt.Printf("%d  %s  %-10s %-8s %s\n",
				op.ID, op.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"), op.Operation, op.Status, op.Parameters)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	keysCmd.AddCommand(keysInitCmd)
	dbCmd.AddCommand(dbMigrateCmd)

	importCmd.Flags().Bool("encrypted", false, "input is an age-encrypted export")

	historyCmd.Flags().String("database", "", "filter by database name")
	historyCmd.Flags().Int("limit", 50, "maximum records to list")

	formatCmd.Flags().String("database", "", "format records from the history store")
	formatCmd.Flags().String("output", "", "write formatted records to a file instead of stdout")
	formatCmd.Flags().StringArray("replace-database-name", nil, "new database name, or OLD=NEW (repeatable)")
	formatCmd.Flags().String("database-name-prefix", "", "prefix prepended to database names")
	formatCmd.Flags().String("data-file-directory", "", "target directory for data files")
	formatCmd.Flags().String("log-file-directory", "", "target directory for log files")
	formatCmd.Flags().String("file-stream-directory", "", "target directory for filestream files")
	formatCmd.Flags().String("file-prefix", "", "prefix inserted before file base names")
	formatCmd.Flags().String("file-suffix", "", "suffix appended after file base names")
	formatCmd.Flags().Bool("replace-db-name-in-file", false, "replace the database name inside file names")
	formatCmd.Flags().StringArray("file-mapping", nil, "exact file target as LOGICAL=PATH (repeatable)")
	formatCmd.Flags().String("rebase-backup-folder", "", "relocate backup set paths to this folder")
	formatCmd.Flags().String("path-separator", "", `path separator for rewritten paths (\ or /)`)

	verifyCmd.Flags().String("database", "", "verify records from the history store")
	verifyCmd.Flags().String("output", "", "write verified records to a file instead of stdout")

	fetchCmd.Flags().String("database", "", "fetch backups for records from the history store")
	fetchCmd.Flags().String("dest", ".", "directory to download backup files into")

	exportCmd.Flags().String("out", "", "write the export to a file instead of stdout")
	exportCmd.Flags().Bool("encrypt", false, "age-encrypt the export")

	opsCmd.Flags().Int("limit", 50, "maximum operations to list")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(opsCmd)
}
