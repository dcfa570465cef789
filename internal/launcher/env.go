package launcher

import (
	"maps"
	"os"
	"slices"
	"strings"
)

// ChildEnv returns base with extra applied on top of it. Keys are kept as
// they are and applied in sorted order, values starting with $ are expanded
// using base. base itself is not modified.
func ChildEnv(base []string, extra map[string]string) []string {
	env := slices.Clone(base)
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		v := extra[k]
		if strings.HasPrefix(v, "$") {
			v = os.Expand(v, lookup(base))
		}
		env = EnvOverride(env, k, v)
	}
	return env
}

// EnvOverride sets key=value in base and guarantees the key appears exactly once.
func EnvOverride(base []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(base)+1)
	for _, kv := range base {
		if strings.HasPrefix(kv, prefix) {
			continue
		}
		out = append(out, kv)
	}
	out = append(out, prefix+value)
	return out
}

func lookup(env []string) func(string) string {
	return func(key string) string {
		prefix := key + "="
		// last one wins, same as for the process
		for i := len(env) - 1; i >= 0; i-- {
			if v, ok := strings.CutPrefix(env[i], prefix); ok {
				return v
			}
		}
		return ""
	}
}

func mergeEnv(envs ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, env := range envs {
		maps.Copy(out, env)
	}
	return out
}
