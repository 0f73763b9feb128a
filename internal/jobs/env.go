package jobs

import (
	"strings"

	"github.com/danpasecinic/reservable/internal/types"
)

// NodeNameVariable is appended to a requirement's prefix to export the
// name of the node granted for it.
const NodeNameVariable = "NODE_NAME"

// ProjectEnv turns a job's grants into environment variables. For each
// grant it exports PREFIX_NODE_NAME and PREFIX_<key> for every node
// setting. A trailing underscore is added to the prefix when missing.
func ProjectEnv(grants []types.Grant) map[string]string {
	env := make(map[string]string)
	for _, g := range grants {
		prefix := normalizePrefix(g.VariablePrefix)
		env[prefix+NodeNameVariable] = g.Node.Name
		for _, s := range g.Node.Settings {
			if strings.TrimSpace(s.Key) == "" {
				continue
			}
			env[prefix+s.Key] = s.Value
		}
	}
	return env
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || strings.HasSuffix(prefix, "_") {
		return prefix
	}
	return prefix + "_"
}
