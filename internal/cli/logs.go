package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
)

var logsTail int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect local telemetry files",
	Long: `Inspect the local telemetry JSONL files.

Lists the files in the telemetry directory with their sizes. With --tail,
prints the last N events of the most recent file instead.

Examples:
  qwen logs
  qwen logs --tail 20`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 0, "print the last N events of the newest file")
}

func runLogs(cmd *cobra.Command, args []string) error {
	paths, err := filepath.Glob(filepath.Join(cfg.TelemetryDir, "*.jsonl"))
	if err != nil {
		return fmt.Errorf("list telemetry files: %w", err)
	}
	if len(paths) == 0 {
		fmt.Printf("No telemetry files in %s\n", cfg.TelemetryDir)
		return nil
	}

	type entry struct {
		path string
		info os.FileInfo
	}
	entries := make([]entry, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}
		entries = append(entries, entry{path: p, info: info})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].info.ModTime().Before(entries[j].info.ModTime())
	})

	if logsTail > 0 {
		return tailFile(entries[len(entries)-1].path, logsTail)
	}

	for _, e := range entries {
		fmt.Printf("%-50s %8d bytes\n", filepath.Base(e.path), e.info.Size())
	}
	return nil
}

// tailFile prints the last n lines of the given JSONL file.
func tailFile(path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	lines := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
