package model

// APIVersion 当前API版本。每个响应文档都携带此字段；
// 客户端固定一个版本，服务端对其他版本返回结构化错误。
const APIVersion = "v1alpha3"

// Envelope 单对象响应外层
type Envelope struct {
	APIVersion string      `json:"apiVersion"`
	Kind       string      `json:"kind"`
	Metadata   interface{} `json:"metadata"`
}

// ListEnvelope 列表响应外层
type ListEnvelope struct {
	APIVersion string        `json:"apiVersion"`
	Items      []interface{} `json:"items"`
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewEnvelope 构造单对象响应
func NewEnvelope(kind string, metadata interface{}) Envelope {
	return Envelope{APIVersion: APIVersion, Kind: kind, Metadata: metadata}
}

// NewList 构造列表响应
func NewList(items []interface{}) ListEnvelope {
	if items == nil {
		items = []interface{}{}
	}
	return ListEnvelope{APIVersion: APIVersion, Items: items}
}

// NewErrorResponse 构造错误响应
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Kind: "Error", Message: message}
}
