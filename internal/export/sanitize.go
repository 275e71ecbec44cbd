package export

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
)

// SanitizeName drops control characters, replaces anything outside a conservative set with '_'
// and truncates to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// ValidateOutputDir requires dir to be an existing, clean directory path without traversal.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return visionerr.InvalidInput("output_dir is required")
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return visionerr.InvalidInput("output_dir cannot contain path traversal")
		}
	}

	cleaned := filepath.Clean(dir)
	if cleaned != dir {
		return visionerr.InvalidInput("output_dir must be clean path")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return visionerr.InvalidInput("output_dir does not exist")
		}
		return visionerr.Wrap(err, visionerr.CodeInvalidInput, "invalid output_dir")
	}
	if !info.IsDir() {
		return visionerr.InvalidInput("output_dir is not a directory")
	}

	return nil
}
