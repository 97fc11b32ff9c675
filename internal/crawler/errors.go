package crawler

import "fmt"

// PageProtocolError 列表页缺少约定字段，终止该任务的分页
type PageProtocolError struct {
	URL    string
	Reason string
}

func (e *PageProtocolError) Error() string {
	return fmt.Sprintf("page %s: %s", e.URL, e.Reason)
}

// NormalizationError 详情缺少没有安全默认值的必填字段，跳过该商品
type NormalizationError struct {
	ItemID string
	Field  string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("item %s: missing required field %s", e.ItemID, e.Field)
}
