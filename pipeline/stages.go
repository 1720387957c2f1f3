package pipeline

import (
	"fmt"

	"github.com/lumifin/autopilot/types"
)

// stageSpec binds one pipeline stage to its role contract: the system
// instruction sent to the generation endpoint, a human-readable record
// description, and the prompt built from the goal plus earlier outputs.
type stageSpec struct {
	Kind        types.StageKind
	Role        string
	Description string
	Thought     string
	Prompt      func(goal string, outputs map[types.StageKind]string) string
}

// stageSpecs defines the four role contracts in execution order.
// Later stages consume the outputs of earlier ones: analyze reads the
// research result, conclude reads everything.
var stageSpecs = map[types.StageKind]stageSpec{
	types.StagePlan: {
		Kind:        types.StagePlan,
		Role:        "You are a planning assistant. Produce a short, ordered plan of concrete steps to accomplish the user's goal. Be specific and brief.",
		Description: "Draft an execution plan for the goal",
		Thought:     "Plan drafted",
		Prompt: func(goal string, _ map[types.StageKind]string) string {
			return goal
		},
	},
	types.StageResearch: {
		Kind:        types.StageResearch,
		Role:        "You are a research assistant. Gather the relevant facts, figures and context for the user's goal. Report findings, not opinions.",
		Description: "Collect relevant information for the goal",
		Thought:     "Research gathered",
		Prompt: func(goal string, _ map[types.StageKind]string) string {
			return goal
		},
	},
	types.StageAnalyze: {
		Kind:        types.StageAnalyze,
		Role:        "You are an analyst. Examine the research findings in light of the goal and extract the key insights, trade-offs and risks.",
		Description: "Analyze the research findings",
		Thought:     "Analysis complete",
		Prompt: func(goal string, outputs map[types.StageKind]string) string {
			return fmt.Sprintf("Research findings:\n%s\n\nGoal: %s", outputs[types.StageResearch], goal)
		},
	},
	types.StageConclude: {
		Kind:        types.StageConclude,
		Role:        "You are a report writer. Combine the plan, research and analysis into a single, final answer to the user's goal.",
		Description: "Produce the final conclusion",
		Thought:     "Conclusion written",
		Prompt: func(goal string, outputs map[types.StageKind]string) string {
			return fmt.Sprintf("Plan:\n%s\n\nResearch findings:\n%s\n\nAnalysis:\n%s\n\nGoal: %s",
				outputs[types.StagePlan], outputs[types.StageResearch], outputs[types.StageAnalyze], goal)
		},
	},
}
