package types

// Model is a model snapshot present in the local asset cache.
type Model struct {
	// Hub identifier.
	// example: onnx-community/granite-docling-258M-ONNX
	ID string `json:"id" example:"onnx-community/granite-docling-258M-ONNX"`
	// Snapshot revision.
	// example: main
	Revision string `json:"revision" example:"main"`
	// Absolute path of the snapshot directory.
	Path string `json:"path"`
	// Number of files in the snapshot.
	// example: 13
	Files int `json:"files" example:"13"`
	// Total size on disk in bytes.
	// example: 1024000000
	SizeBytes int64 `json:"size_bytes" example:"1024000000"`
	// Human readable size.
	// example: 1.024GB
	Size string `json:"size" example:"1.024GB"`
	// Precisions of weight shards found, e.g. ["fp16","fp32"].
	Precisions []string `json:"precisions,omitempty"`
	// Whether this is the configured model.
	Active bool `json:"active"`
}
