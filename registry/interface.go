package registry

import "context"

// Registry 实例元数据注册中心
//
// 读取结果可能是陈旧或不完整的（最终一致），调用方必须容忍空结果。
type Registry interface {
	// ListInstances 按选择器列出池中的实例，顺序为存储 key 顺序
	ListInstances(ctx context.Context, sel Selector) ([]*Instance, error)

	// SetRoleLabel 修改默认池中某个实例的角色标签
	//
	// 记录不存在时写入一条不带租约的 pending 占位记录；
	// 记录存在时只修改角色，保留其租约。
	SetRoleLabel(ctx context.Context, identity string, role Role) error

	// Publish 将实例记录绑定到租约上发布并持续续约，存活期间实例状态为 running
	//
	// 若已有记录来自同一进程实例（CreatedAt 相同）且已有角色，则保留已有角色。
	// 返回的通道在租约丢失时关闭，调用方可据此重新发布。
	Publish(ctx context.Context, inst *Instance) (<-chan struct{}, error)

	// Close 停止续约并释放资源，不删除已发布的记录
	Close() error
}
