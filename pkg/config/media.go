package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/plexcache/plexcache/pkg/regex"
)

// MediaFile is the expression environment for filter evaluation. One value
// is built per candidate physical path; size and age come from a single
// stat and stay zero when the file is missing.
type MediaFile struct {
	Path      string
	Name      string
	Ext       string
	SizeBytes int64
	AgeDays   float32

	regexPattern *regex.Pattern
}

func NewMediaFile(path string) *MediaFile {
	m := &MediaFile{
		Path: path,
		Name: filepath.Base(path),
		Ext:  strings.ToLower(filepath.Ext(path)),
	}

	if info, err := os.Stat(path); err == nil {
		m.SizeBytes = info.Size()
		m.AgeDays = float32(time.Since(info.ModTime()).Hours() / 24)
	}

	return m
}

// RegexMatch delegates to the regex checker
func (m *MediaFile) RegexMatch(pattern string) bool {
	if m.regexPattern == nil || m.regexPattern.Expression.String() != pattern {
		compiled, err := regex.Compile(pattern)
		if err != nil {
			return false
		}
		m.regexPattern = compiled
	}

	match, err := regex.Check(m.Name, m.regexPattern)
	if err != nil {
		return false
	}

	return match
}

// RegexMatchAny checks if the file name matches any of the provided patterns
func (m *MediaFile) RegexMatchAny(patternsStr string) bool {
	var compiledPatterns []*regex.Pattern
	for _, p := range strings.Split(patternsStr, ",") {
		compiled, err := regex.Compile(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		compiledPatterns = append(compiledPatterns, compiled)
	}

	match, err := regex.CheckAny(m.Name, compiledPatterns)
	if err != nil {
		return false
	}

	return match
}
