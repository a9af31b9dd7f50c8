package election

import "github.com/ceyewan/kvrole/registry"

// Elect 返回候选者中 (CreatedAt, Identity) 最小的实例，候选为空时返回 nil
//
// 排序是严格全序，结果与候选顺序无关。
func Elect(instances []*registry.Instance) *registry.Instance {
	var winner *registry.Instance
	for _, inst := range instances {
		if inst == nil {
			continue
		}
		if winner == nil || less(inst, winner) {
			winner = inst
		}
	}
	return winner
}

func less(a, b *registry.Instance) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Identity < b.Identity
}
