// internal/models/export.go
package models

import "time"

// ExportArtifact 表示一次导出产生的单个文件
type ExportArtifact struct {
	DocumentID  string    `json:"document_id"`
	Format      string    `json:"format"` // json / markdown
	FilePath    string    `json:"file_path"`
	FileSize    int64     `json:"file_size"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ExportPair 每次修订导出一对带时间戳的产物：结构化JSON加可读Markdown
// 旧产物从不被覆盖，历史由导出层按构造保证只增不改
type ExportPair struct {
	JSON     ExportArtifact `json:"json"`
	Markdown ExportArtifact `json:"markdown"`
}
