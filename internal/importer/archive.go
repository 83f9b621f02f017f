package importer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xpchen/hogprice-insight-sub000/internal/model"
)

// IsArchive 判断上传文件是否是 zip 压缩包
func IsArchive(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".zip")
}

// IsWorkbook 判断文件名是否是受支持的 Excel 工作簿
func IsWorkbook(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return true
	}
	return false
}

// ImportArchive 展开 zip 包并逐个导入其中的工作簿，每个工作簿独立成批。
// 进度事件合并到一个通道里，按成员顺序串行产生。
func (c *Coordinator) ImportArchive(zipPath string, opts ImportOptions) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 100)
	go func() {
		defer close(ch)
		reports, err := c.importArchive(zipPath, opts, ch)
		if err != nil {
			c.send(ch, ProgressEvent{
				Type:      "error",
				Message:   err.Error(),
				Timestamp: time.Now(),
			})
			return
		}
		c.send(ch, ProgressEvent{
			Type:      "done",
			Message:   fmt.Sprintf("压缩包导入完成，共 %d 个工作簿", len(reports)),
			Report:    reports,
			Timestamp: time.Now(),
		})
	}()
	return ch
}

func (c *Coordinator) importArchive(zipPath string, opts ImportOptions, ch chan<- ProgressEvent) ([]*model.ImportReport, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("打开压缩包失败: %w", err)
	}
	defer r.Close()

	// 成员文件是各自批次的原始文件，必须留在持久目录里供重放；
	// 未配置解包目录时退回临时目录，同样不在导入后删除
	destDir := c.archiveDir
	if destDir == "" {
		destDir, err = os.MkdirTemp("", "hogprice-archive-*")
		if err != nil {
			return nil, fmt.Errorf("创建解包目录失败: %w", err)
		}
	}

	var reports []*model.ImportReport
	for _, member := range r.File {
		name := filepath.Base(member.Name)
		if member.FileInfo().IsDir() || !IsWorkbook(name) || strings.HasPrefix(name, ".") {
			continue
		}
		path, err := extractMember(member, destDir)
		if err != nil {
			c.log.Error("解压压缩包成员失败", zap.String("member", member.Name), zap.Error(err))
			c.send(ch, ProgressEvent{
				Type:      "warning",
				Message:   fmt.Sprintf("跳过无法解压的成员 %s: %v", member.Name, err),
				Timestamp: time.Now(),
			})
			continue
		}
		memberOpts := opts
		memberOpts.FilePath = path
		memberOpts.Filename = name
		reports = append(reports, c.ImportFile(memberOpts, ch))
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("压缩包 %s 中没有可导入的工作簿", filepath.Base(zipPath))
	}
	return reports, nil
}

func extractMember(member *zip.File, dir string) (string, error) {
	src, err := member.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	// 只取 base name，压缩包内的目录结构不落盘；
	// 时间戳前缀避免不同压缩包的同名成员互相覆盖
	path := filepath.Join(dir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(member.Name)))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return path, nil
}
