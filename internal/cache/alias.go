package cache

import "sort"

// SelectAliases 按展示名称分组，返回每组中通道排序最大的快照。
// 同名组内混有稳定版与日期快照时没有可用的顺序，直接拒绝。
func SelectAliases(snapshots []Snapshot) (map[string]Snapshot, error) {
	latest := make(map[string]Snapshot)
	for _, snap := range snapshots {
		name := snap.Channel.Name()
		current, ok := latest[name]
		if !ok {
			latest[name] = snap
			continue
		}
		cmp, err := snap.Channel.Compare(current.Channel)
		if err != nil {
			return nil, newError(KindMixedChannel, name, err)
		}
		if cmp > 0 {
			latest[name] = snap
		}
	}
	return latest, nil
}

// aliasNames 返回排序后的别名，保证写入顺序稳定。
func aliasNames(aliases map[string]Snapshot) []string {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
