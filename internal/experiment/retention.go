package experiment

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// RunDir describes one run directory under a results root.
type RunDir struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// RetentionPolicy decides which run directories to keep. Input is sorted
// newest first.
type RetentionPolicy interface {
	Apply(dirs []RunDir) (keep []RunDir)
}

// CountPolicy keeps the N most recent run directories.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount directories.
func (p *CountPolicy) Apply(dirs []RunDir) []RunDir {
	if len(dirs) <= p.MaxCount {
		return dirs
	}
	return dirs[:p.MaxCount]
}

// AgePolicy keeps run directories newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
}

// Apply keeps directories whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(dirs []RunDir) []RunDir {
	cutoff := time.Now().Add(-p.MaxAge)
	var keep []RunDir
	for _, d := range dirs {
		if d.CreatedAt.After(cutoff) {
			keep = append(keep, d)
		}
	}
	return keep
}

// SizePolicy keeps run directories until their total size exceeds MaxTotalBytes.
type SizePolicy struct {
	MaxTotalBytes int64
}

// Apply keeps directories (newest first) until adding the next would exceed
// the limit. The newest directory is always kept.
func (p *SizePolicy) Apply(dirs []RunDir) []RunDir {
	var keep []RunDir
	var total int64
	for _, d := range dirs {
		if total+d.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, d)
		total += d.Size
	}
	return keep
}

// AllPolicy keeps a run directory only if every sub-policy keeps it.
type AllPolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the intersection of the sub-policies.
func (p *AllPolicy) Apply(dirs []RunDir) []RunDir {
	if len(p.Policies) == 0 {
		return dirs
	}
	counts := make(map[string]int)
	for _, policy := range p.Policies {
		for _, d := range policy.Apply(dirs) {
			counts[d.Path]++
		}
	}
	var result []RunDir
	for _, d := range dirs {
		if counts[d.Path] == len(p.Policies) {
			result = append(result, d)
		}
	}
	return result
}

// BuildPolicy combines the configured limits. Empty or zero limits are
// skipped; with no limits every run is kept.
func BuildPolicy(keep int, maxAge, maxSize string) (RetentionPolicy, error) {
	all := &AllPolicy{}
	if keep > 0 {
		all.Policies = append(all.Policies, &CountPolicy{MaxCount: keep})
	}
	if maxAge != "" {
		d, err := ParseDuration(maxAge)
		if err != nil {
			return nil, err
		}
		all.Policies = append(all.Policies, &AgePolicy{MaxAge: d})
	}
	if maxSize != "" {
		n, err := ParseSize(maxSize)
		if err != nil {
			return nil, err
		}
		all.Policies = append(all.Policies, &SizePolicy{MaxTotalBytes: n})
	}
	return all, nil
}

// ListRunDirs returns the run directories under root (those holding a
// summary.json), newest first.
func ListRunDirs(root string) ([]RunDir, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading results directory: %w", err)
	}

	var dirs []RunDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		info, err := os.Stat(filepath.Join(path, SummaryFile))
		if err != nil {
			continue
		}
		size, err := dirSize(path)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, RunDir{Path: path, Size: size, CreatedAt: info.ModTime()})
	}

	sort.Slice(dirs, func(i, j int) bool {
		if !dirs[i].CreatedAt.Equal(dirs[j].CreatedAt) {
			return dirs[i].CreatedAt.After(dirs[j].CreatedAt)
		}
		return dirs[i].Path > dirs[j].Path
	})
	return dirs, nil
}

func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing %s: %w", path, err)
	}
	return total, nil
}

// Prune deletes run directories under root that the policy does not keep.
// With dryRun set nothing is removed; the would-be deletions are returned.
func Prune(root string, policy RetentionPolicy, dryRun bool) (deleted []string, err error) {
	dirs, err := ListRunDirs(root)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool)
	for _, d := range policy.Apply(dirs) {
		keepSet[d.Path] = true
	}

	for _, d := range dirs {
		if keepSet[d.Path] {
			continue
		}
		if !dryRun {
			if err := os.RemoveAll(d.Path); err != nil {
				return deleted, fmt.Errorf("removing %s: %w", filepath.Base(d.Path), err)
			}
		}
		deleted = append(deleted, d.Path)
	}
	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w", "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	// Custom suffixes: d (days), w (weeks)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	suffix := s[len(s)-1]
	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	switch suffix {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix %q in %q", string(suffix), s)
	}
}

// ParseSize parses size strings like "100MB", "1GB", "500KB" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	// Longer suffixes first so "MB" is not read as "B".
	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}
	for _, ss := range suffixes {
		if strings.HasSuffix(s, ss.suffix) {
			num, err := strconv.ParseInt(strings.TrimSuffix(s, ss.suffix), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size: %q", s)
			}
			return num * ss.multiplier, nil
		}
	}
	return 0, fmt.Errorf("invalid size: %q (expected suffix: B, KB, MB, GB)", s)
}
