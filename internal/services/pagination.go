package services

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// NormalizePage 页码小于 1 取 1；每页条数未指定取默认值，超过上限截断
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
