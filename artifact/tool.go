package artifact

import (
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

// ListToolName is the name under which NewListTool registers.
const ListToolName = "list_output_files"

type listArgs struct{}

// NewListTool exposes the store contents as the list_output_files tool.
func NewListTool(store *Store) tool.Tool {
	return tool.NewTypedTool(
		ListToolName,
		"List the files in the output directory with their size and modification time.",
		func(tc *core.ToolContext, _ listArgs) (any, error) {
			infos, err := store.List()
			if err != nil {
				return nil, err
			}

			if infos == nil {
				infos = []Info{}
			}

			tc.Logger().Debug("artifact.list", "files", len(infos))

			return map[string]any{"files": infos}, nil
		},
	)
}
