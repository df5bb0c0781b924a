package tool

import (
	"github.com/hupe1980/agentplay/internal/util"
)

// DefaultCompletionTool is the name the loop treats as "task finished".
const DefaultCompletionTool = "complete_task"

// NewCompletionTool builds the tool a model calls to signal the task is done.
// It reports the optional answer to the world's supervisor app.
func NewCompletionTool(name string) Descriptor {
	if name == "" {
		name = DefaultCompletionTool
	}

	return NewFunctionTool(
		name,
		"Mark the current task as complete. Call this once every required action has been performed. "+
			"Pass the answer if the task asked a question; omit it otherwise.",
		[]Field{{
			Name:        "answer",
			Type:        TypeString,
			Description: "Final answer to the task, if it asked for one",
			Optional:    true,
		}},
		func(args map[string]any) (string, error) {
			if answer, ok := args["answer"]; ok && answer != nil {
				return "apis.supervisor.complete_task(answer=" + util.PyLiteral(answer) + ")", nil
			}
			return "apis.supervisor.complete_task()", nil
		},
	)
}
