package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qbitorbit/atlas/logging"
)

// Skill is a named instruction block loaded from a markdown file. The file
// name (without extension) becomes the skill name; the file body is appended
// verbatim to the agent's system prompt.
type Skill struct {
	Name    string
	Content string
}

// LoadSkillFile reads a single markdown skill file.
func LoadSkillFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, fmt.Errorf("load skill %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Skill{Name: name, Content: strings.TrimSpace(string(data))}, nil
}

// LoadSkillsDir loads all .md files in dir as skills, sorted by file name.
// A missing directory is not an error; it yields no skills and a warning so
// agents degrade to their base instructions.
func LoadSkillsDir(dir string, logger logging.Logger) []Skill {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("skills directory unavailable", "dir", dir, "error", err)
		return nil
	}

	var skills []Skill
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		skill, err := LoadSkillFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			logger.Warn("skipping unreadable skill", "file", entry.Name(), "error", err)
			continue
		}
		skills = append(skills, skill)
	}

	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills
}

// SkillContents extracts the instruction blocks for Options.Skills.
func SkillContents(skills []Skill) []string {
	contents := make([]string, 0, len(skills))
	for _, s := range skills {
		contents = append(contents, s.Content)
	}
	return contents
}
