package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Stage is one transformation of a corpus file.
type Stage string

// Stages in their fixed execution order.
const (
	StageClassify    Stage = "classify"
	StageRestructure Stage = "restructure"
	StageExtract     Stage = "extract"
	StageClean       Stage = "clean"
)

var stageOrder = map[Stage]int{
	StageClassify:    0,
	StageRestructure: 1,
	StageExtract:     2,
	StageClean:       3,
}

// AllStages returns every stage in execution order.
func AllStages() []Stage {
	return []Stage{StageClassify, StageRestructure, StageExtract, StageClean}
}

// ParseStages validates names, drops duplicates and sorts into execution order.
func ParseStages(names []string) ([]Stage, error) {
	seen := make(map[Stage]bool)
	var stages []Stage
	for _, name := range names {
		stage := Stage(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := stageOrder[stage]; !ok {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		if !seen[stage] {
			seen[stage] = true
			stages = append(stages, stage)
		}
	}
	sortStages(stages)
	return stages, nil
}

func sortStages(stages []Stage) {
	sort.SliceStable(stages, func(i, j int) bool {
		return stageOrder[stages[i]] < stageOrder[stages[j]]
	})
}
