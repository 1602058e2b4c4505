package execution

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/mrz1836/tabula/internal/constants"
	"github.com/mrz1836/tabula/internal/domain"
)

// artifactBase returns the name shared by every artifact of a script run:
// [<plan file>.<plan name>.<sequence>,]<script>.<timestamp>
func artifactBase(def *domain.ExecutionDefinition, start time.Time) string {
	base := fmt.Sprintf("%s.%s", def.ScriptName(), start.Format(constants.ArtifactTimestampFormat))
	if def.Plan == nil {
		return base
	}
	planFile := filepath.Base(def.Plan.File)
	planFile = planFile[:len(planFile)-len(filepath.Ext(planFile))]
	return fmt.Sprintf("%s.%s.%03d,%s", planFile, def.Plan.Name, def.Plan.Sequence, base)
}

// ArtifactName returns the file name of the execution unit of iteration index.
func ArtifactName(def *domain.ExecutionDefinition, start time.Time, index int) string {
	ext := filepath.Ext(def.Script)
	if ext == "" {
		ext = constants.WorkbookExt
	}
	return fmt.Sprintf("%s.%03d%s", artifactBase(def, start), index, ext)
}

// SummaryName returns the file name of the persisted script summary.
func SummaryName(def *domain.ExecutionDefinition, start time.Time) string {
	return artifactBase(def, start) + constants.ScriptSummarySuffix
}
