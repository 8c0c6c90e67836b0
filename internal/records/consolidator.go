package records

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
)

const (
	// MasterPrefix 主表文件名前缀
	MasterPrefix = "MASTER_courses_database_"

	masterTimeLayout = "20060102_150405"
)

// SiteTable 待合并的站点表
type SiteTable struct {
	Site string
	Path string
}

// SiteCount 主表中某站点的行数
type SiteCount struct {
	Site  string
	Count int
}

// MasterTable 合并后的主表
type MasterTable struct {
	Columns    []string
	Rows       [][]string
	InputRows  int         // 去重前的总行数
	SiteCounts []SiteCount // 按首次出现顺序
	Skipped    []string    // 缺失、为空或无法读取的站点
}

// Consolidate 按配置顺序合并站点表
// 补齐规范列、按url去重(保留先出现的行)
func Consolidate(tables []SiteTable) (*MasterTable, error) {
	master := &MasterTable{
		Columns: append([]string{}, models.CanonicalColumns...),
		Rows:    make([][]string, 0),
	}
	seen := make(map[string]bool)
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, st := range tables {
		table, err := ReadTable(st.Path)
		if err != nil {
			if os.IsNotExist(err) {
				utils.Warnf("⚠️  未找到站点表: %s", st.Path)
			} else {
				utils.Warnf("⚠️  读取站点表失败 [%s]: %v", st.Site, err)
			}
			master.Skipped = append(master.Skipped, st.Site)
			continue
		}
		if len(table.Rows) == 0 {
			utils.Warnf("⚠️  站点表为空: %s", st.Site)
			master.Skipped = append(master.Skipped, st.Site)
			continue
		}
		utils.Infof("✓ %s: %d 条课程", st.Site, len(table.Rows))

		index := columnIndex(table.Columns)
		for _, raw := range table.Rows {
			master.InputRows++
			row := canonicalRow(raw, index, st.Site)

			url := row[urlColumn]
			if seen[url] {
				continue
			}
			seen[url] = true
			master.Rows = append(master.Rows, row)

			site := row[siteColumn]
			if _, ok := counts[site]; !ok {
				order = append(order, site)
			}
			counts[site]++
		}
	}

	for _, site := range order {
		master.SiteCounts = append(master.SiteCounts, SiteCount{Site: site, Count: counts[site]})
	}
	return master, nil
}

var (
	siteColumn = indexOf(models.CanonicalColumns, models.ColSourceSite)
	urlColumn  = indexOf(models.CanonicalColumns, models.ColURL)
)

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

// columnIndex 列名到下标的映射,重复列取第一个
func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	return index
}

// canonicalRow 按规范列重排,缺失或为空的单元格填 N/A
// 缺少来源站点时使用配置的站点名
func canonicalRow(raw []string, index map[string]int, site string) []string {
	row := make([]string, len(models.CanonicalColumns))
	for i, col := range models.CanonicalColumns {
		value := ""
		if j, ok := index[col]; ok && j < len(raw) {
			value = strings.TrimSpace(raw[j])
		}
		if col == models.ColSourceSite && value == "" {
			value = site
		}
		if value == "" {
			value = models.NotAvailable
		}
		row[i] = value
	}
	return row
}

// Len 主表行数
func (m *MasterTable) Len() int {
	return len(m.Rows)
}

// Table 返回可写入的表
func (m *MasterTable) Table() Table {
	return Table{Columns: m.Columns, Rows: m.Rows}
}

// Write 将主表写入 dir,文件名带时间戳
// 同名文件已存在时追加序号,不覆盖
func (m *MasterTable) Write(dir string, now time.Time) (string, error) {
	path, err := masterPath(dir, now)
	if err != nil {
		return "", &models.PersistenceError{Path: dir, Cause: err}
	}
	if err := WriteTable(path, m.Table()); err != nil {
		return "", err
	}
	return path, nil
}

func masterPath(dir string, now time.Time) (string, error) {
	base := MasterPrefix + now.Format(masterTimeLayout)
	path := filepath.Join(dir, base+".csv")
	for n := 1; ; n++ {
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d.csv", base, n))
	}
}
