package pathmap

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/plexcache/plexcache/pkg/logger"
)

// Rule rewrites the first occurrence of Match with Replace. Rules are
// evaluated in order and only the first matching rule is applied.
type Rule struct {
	Match   string
	Replace string
}

// Translator rewrites media-server paths into physical filesystem paths.
type Translator struct {
	logicalPrefix  string
	physicalPrefix string
	rules          []Rule

	log *logrus.Entry
}

// New builds a Translator. Folder fragment lists are positionally paired
// and must be equal length; a mismatch is a configuration error.
func New(logicalPrefix string, physicalPrefix string, logicalFolders []string, physicalFolders []string) (*Translator, error) {
	if len(logicalFolders) != len(physicalFolders) {
		return nil, errors.Errorf("library folder lists must be the same length (%d vs %d)",
			len(logicalFolders), len(physicalFolders))
	}

	rules := make([]Rule, 0, len(logicalFolders))
	for i, folder := range logicalFolders {
		rules = append(rules, Rule{Match: folder, Replace: physicalFolders[i]})
	}

	return &Translator{
		logicalPrefix:  logicalPrefix,
		physicalPrefix: physicalPrefix,
		rules:          rules,
		log:            logger.GetLogger("pathmap"),
	}, nil
}

// Translate rewrites each path from the server's namespace to the
// filesystem's. Paths outside the logical source prefix belong to
// untracked libraries and are dropped. Output order follows input order.
func (t *Translator) Translate(paths []string) []string {
	translated := make([]string, 0, len(paths))

	for _, path := range paths {
		if !strings.HasPrefix(path, t.logicalPrefix) {
			t.log.Tracef("Skipping untracked path: %q", path)
			continue
		}

		path = strings.Replace(path, t.logicalPrefix, t.physicalPrefix, 1)

		// first matching folder rule wins, even if later rules would
		// also match
		for _, rule := range t.rules {
			if strings.Contains(path, rule.Match) {
				path = strings.Replace(path, rule.Match, rule.Replace, 1)
				break
			}
		}

		t.log.Tracef("Translated path: %q", path)
		translated = append(translated, path)
	}

	return translated
}
