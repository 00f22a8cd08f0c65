package marketdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fileSuffix = ".csv.gz"

// FileInfo represents one discovered vendor file
type FileInfo struct {
	Path    string
	Day     string
	Size    int64
	ModTime time.Time
}

// Inventory lists the days for which vendor files exist
type Inventory struct {
	Quotes map[string]FileInfo
	Trades map[string]FileInfo
}

// Inventory scans the quotes and trades directories. A missing directory is
// an empty listing, not an error.
func (s *Store) Inventory() (*Inventory, error) {
	quotes, err := findDailyFiles(filepath.Join(s.Dir, "quotes"))
	if err != nil {
		return nil, err
	}
	trades, err := findDailyFiles(filepath.Join(s.Dir, "trades"))
	if err != nil {
		return nil, err
	}
	return &Inventory{Quotes: quotes, Trades: trades}, nil
}

// Missing returns the requested days that lack a quotes or a trades file
func (inv *Inventory) Missing(days []string) []string {
	var missing []string
	for _, day := range days {
		_, q := inv.Quotes[day]
		_, t := inv.Trades[day]
		if !q || !t {
			missing = append(missing, day)
		}
	}
	return missing
}

// findDailyFiles finds <YYYY-MM-DD>.csv.gz files keyed by day
func findDailyFiles(dir string) (map[string]FileInfo, error) {
	files := make(map[string]FileInfo)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return files, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		day := strings.TrimSuffix(name, fileSuffix)
		if _, err := time.Parse(DayLayout, day); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files[day] = FileInfo{
			Path:    filepath.Join(dir, name),
			Day:     day,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
	}
	return files, nil
}
