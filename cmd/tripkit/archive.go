package main

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"tripkit/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// Archive member prefix for rendered itineraries.
const itineraryPrefix = "itineraries/"

// archiveEntry is one file to archive under name.
type archiveEntry struct {
	path string
	name string
}

func archiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Back up and restore the ledger, config and itineraries",
	}
	cmd.AddCommand(backupCmd())
	cmd.AddCommand(restoreCmd())
	return cmd
}

func backupCmd() *cobra.Command {
	var outputPath string
	var withDocuments bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup of tripkit data (ledger + config)",
		Long: `Creates a compressed .tar.gz archive containing the SQLite ledger and the
configuration file, plus every rendered itinerary with --documents. The backup
is timestamped by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if outputPath == "" {
				backupDir := filepath.Join(config.DefaultConfigDir(), "backups")
				if err := os.MkdirAll(backupDir, 0o755); err != nil {
					return fmt.Errorf("cannot create backup directory: %w", err)
				}
				ts := time.Now().Format("20060102-150405")
				outputPath = filepath.Join(backupDir, fmt.Sprintf("tripkit-backup-%s.tar.gz", ts))
			}

			entries := collectBackup(cfgPath, cfg, withDocuments)
			if len(entries) == 0 {
				return fmt.Errorf("no files to backup (ledger: %s, config: %s)", cfg.Store.DBPath, cfgPath)
			}

			if err := createTarGz(outputPath, entries); err != nil {
				os.Remove(outputPath)
				return fmt.Errorf("backup failed: %w", err)
			}

			fmt.Printf("Backup created: %s\n", outputPath)
			fmt.Printf("Files included: %d\n", len(entries))
			for _, e := range entries {
				info, _ := os.Stat(e.path)
				size := int64(0)
				if info != nil {
					size = info.Size()
				}
				fmt.Printf("  - %s (%s)\n", e.name, humanSize(size))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default: ~/.tripkit/backups/tripkit-backup-<timestamp>.tar.gz)")
	cmd.Flags().BoolVar(&withDocuments, "documents", false, "include rendered itineraries")
	return cmd
}

// collectBackup lists the files that exist among the ledger, its WAL
// companions, the config and (optionally) the rendered itineraries.
func collectBackup(cfgPath string, cfg *config.Config, withDocuments bool) []archiveEntry {
	var entries []archiveEntry
	add := func(p, name string) {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			entries = append(entries, archiveEntry{path: p, name: name})
		}
	}

	if cfg.Store.Enabled && cfg.Store.DBPath != "" {
		db := cfg.Store.DBPath
		add(db, filepath.Base(db))
		for _, suffix := range []string{"-wal", "-shm"} {
			add(db+suffix, filepath.Base(db)+suffix)
		}
	}
	add(cfgPath, filepath.Base(cfgPath))

	if withDocuments {
		matches, _ := filepath.Glob(filepath.Join(cfg.Documents.OutputDir, "itinerary_*.pdf"))
		for _, m := range matches {
			add(m, itineraryPrefix+filepath.Base(m))
		}
	}
	return entries
}

func restoreCmd() *cobra.Command {
	var inputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "restore [file.tar.gz]",
		Short: "Restore tripkit data from a backup archive",
		Long: `Restores the SQLite ledger, the configuration file and any archived
itineraries from a .tar.gz backup created by 'tripkit archive create'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" && len(args) > 0 {
				inputPath = args[0]
			}
			if inputPath == "" {
				return fmt.Errorf("specify a backup file: tripkit archive restore <file.tar.gz>")
			}

			cfgPath := resolveConfigPath()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			dbPath := cfg.Store.DBPath

			// Safety: warn before overwriting
			if !force {
				existing := false
				if _, err := os.Stat(dbPath); err == nil {
					existing = true
				}
				if _, err := os.Stat(cfgPath); err == nil {
					existing = true
				}
				if existing {
					fmt.Printf("WARNING: This will overwrite existing data.\n")
					fmt.Printf("  Ledger: %s\n", dbPath)
					fmt.Printf("  Config: %s\n", cfgPath)
					fmt.Printf("Use --force to skip this warning.\n")
					return fmt.Errorf("restore aborted (use --force to proceed)")
				}
			}

			restored, err := extractTarGz(inputPath, restoreTargets{
				dbPath:    dbPath,
				cfgPath:   cfgPath,
				outputDir: cfg.Documents.OutputDir,
			})
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			fmt.Printf("Restore completed from: %s\n", inputPath)
			fmt.Printf("Files restored: %d\n", len(restored))
			for _, f := range restored {
				fmt.Printf("  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "backup file to restore from")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing data without warning")
	return cmd
}

// createTarGz creates a .tar.gz archive from the given entries.
func createTarGz(outputPath string, entries []archiveEntry) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	tarWriter := tar.NewWriter(gzWriter)

	for _, e := range entries {
		if err := addFileToTar(tarWriter, e); err != nil {
			return fmt.Errorf("add %s: %w", e.path, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return err
	}
	if err := gzWriter.Close(); err != nil {
		return err
	}
	return outFile.Sync()
}

func addFileToTar(tw *tar.Writer, e archiveEntry) error {
	file, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = e.name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tw, file)
	return err
}

type restoreTargets struct {
	dbPath    string
	cfgPath   string
	outputDir string
}

// targetFor maps an archive member to where it is restored. Members are
// reduced to their base name so an archive cannot write outside the
// configured locations.
func (t restoreTargets) targetFor(member string) string {
	member = path.Clean(filepath.ToSlash(member))
	base := path.Base(member)
	dbBase := filepath.Base(t.dbPath)
	switch {
	case strings.HasPrefix(member, itineraryPrefix):
		return filepath.Join(t.outputDir, base)
	case base == filepath.Base(t.cfgPath), base == "config.yaml", base == "config.json":
		return t.cfgPath
	case base == dbBase, strings.HasSuffix(base, ".db"):
		return t.dbPath
	case base == dbBase+"-wal", strings.HasSuffix(base, ".db-wal"):
		return t.dbPath + "-wal"
	case base == dbBase+"-shm", strings.HasSuffix(base, ".db-shm"):
		return t.dbPath + "-shm"
	default:
		return filepath.Join(filepath.Dir(t.cfgPath), base)
	}
}

// extractTarGz extracts the archived files to their configured locations.
func extractTarGz(archivePath string, targets restoreTargets) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("not a valid gzip file: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var restored []string

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		targetPath := targets.targetFor(header.Name)
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return nil, err
		}

		outFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode).Perm())
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", targetPath, err)
		}

		if _, err := io.Copy(outFile, tarReader); err != nil {
			outFile.Close()
			return nil, fmt.Errorf("extract %s: %w", targetPath, err)
		}
		if err := outFile.Close(); err != nil {
			return nil, fmt.Errorf("extract %s: %w", targetPath, err)
		}

		restored = append(restored, targetPath)
	}

	return restored, nil
}

func humanSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
