package metrics

// Label 指标标签，用于为指标添加维度信息
//
// 标签值应保持低基数：角色、路径、结果这类取值有限的维度，
// 而不是 identity 或地址。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数，创建一个 Label 实例
//
//	counter.Inc(ctx, metrics.L("outcome", "primary"))
func L(key, value string) Label {
	return Label{
		Key:   key,
		Value: value,
	}
}
