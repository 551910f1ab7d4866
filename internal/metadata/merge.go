// internal/metadata/merge.go
package metadata

// Merge combines two nested metadata trees without destroying sibling
// keys. When both sides hold a nested map under the same key the maps
// are merged recursively; any other collision is won by updates. Inputs
// are never mutated; the result is a fresh tree. Applying the same
// update twice yields the same tree as applying it once.
func Merge(base, updates map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(updates))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range updates {
		baseChild, baseIsMap := out[k].(map[string]interface{})
		updChild, updIsMap := v.(map[string]interface{})
		if baseIsMap && updIsMap {
			out[k] = Merge(baseChild, updChild)
			continue
		}
		out[k] = v
	}
	return out
}

// Tree builds a single-branch tree, e.g. Tree("sla", m) == {"sla": m}.
// Stages use it so each only ever supplies its own sub-tree.
func Tree(key string, value interface{}) map[string]interface{} {
	return map[string]interface{}{key: value}
}
