package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

// utf8BOM 写入表头前的BOM,便于表格软件识别编码
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table 表头与数据行
type Table struct {
	Columns []string
	Rows    [][]string
}

// Records 将课程记录转换为规范列顺序的表
func Records(recs []models.CourseRecord) Table {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, r.Values())
	}
	return Table{Columns: append([]string{}, models.CanonicalColumns...), Rows: rows}
}

// WriteRecords 将课程记录写入站点表
func WriteRecords(path string, recs []models.CourseRecord) error {
	return WriteTable(path, Records(recs))
}

// WriteTable 原子写入CSV表: 先写临时文件再重命名
func WriteTable(path string, table Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &models.PersistenceError{Path: path, Cause: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &models.PersistenceError{Path: path, Cause: err}
	}
	tmpPath := tmp.Name()

	if err := encodeTable(tmp, table); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return &models.PersistenceError{Path: path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return &models.PersistenceError{Path: path, Cause: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &models.PersistenceError{Path: path, Cause: err}
	}
	return nil
}

func encodeTable(w io.Writer, table Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("写入数据行失败: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable 读取CSV表,首行为表头
// 空文件返回零行的表
func ReadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, fmt.Errorf("读取表头失败 [%s]: %w", path, err)
	}

	table := Table{Columns: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return table, fmt.Errorf("读取数据行失败 [%s]: %w", path, err)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
