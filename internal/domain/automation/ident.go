package automation

import "github.com/google/uuid"

// IDSource 唯一 ID 生成器。注入而非写死，便于测试产出确定性 ID。
type IDSource func() string

// UUIDSource 默认的 UUID v4 ID 源
func UUIDSource() string {
	return uuid.NewString()
}
