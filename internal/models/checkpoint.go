package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CheckpointFilename 活动检查点文件名
const CheckpointFilename = ".scraping_checkpoint.json"

// CampaignState 活动进度
// 作为值在站点运行之间传递,由编排器负责持久化
type CampaignState struct {
	Completed []string  `json:"completed"`           // 已完成的站点名称
	UpdatedAt time.Time `json:"updated_at,omitempty"` // 最后更新时间
}

// IsCompleted 检查站点是否已完成
func (s CampaignState) IsCompleted(site string) bool {
	for _, name := range s.Completed {
		if name == site {
			return true
		}
	}
	return false
}

// WithCompleted 返回标记站点完成后的新状态,不修改接收者
func (s CampaignState) WithCompleted(site string) CampaignState {
	next := CampaignState{
		Completed: make([]string, 0, len(s.Completed)+1),
		UpdatedAt: time.Now(),
	}
	next.Completed = append(next.Completed, s.Completed...)
	if !s.IsCompleted(site) {
		next.Completed = append(next.Completed, site)
	}
	return next
}

// Without 返回移除指定站点后的新状态,不修改接收者
func (s CampaignState) Without(site string) CampaignState {
	next := CampaignState{Completed: make([]string, 0, len(s.Completed)), UpdatedAt: s.UpdatedAt}
	for _, name := range s.Completed {
		if name != site {
			next.Completed = append(next.Completed, name)
		}
	}
	return next
}

// CoversAll 检查给定站点是否全部完成
func (s CampaignState) CoversAll(sites []SiteConfig) bool {
	for _, site := range sites {
		if !s.IsCompleted(site.Name) {
			return false
		}
	}
	return true
}

// ToJSON 序列化为JSON
func (s CampaignState) ToJSON() ([]byte, error) {
	if s.Completed == nil {
		s.Completed = []string{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// FromJSON 从JSON反序列化
func (s *CampaignState) FromJSON(data []byte) error {
	return json.Unmarshal(data, s)
}

// Save 原子写入检查点: 先写同目录临时文件再重命名
func (s CampaignState) Save(path string) error {
	data, err := s.ToJSON()
	if err != nil {
		return &PersistenceError{Path: path, Cause: err}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Path: path, Cause: err}
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*.tmp")
	if err != nil {
		return &PersistenceError{Path: path, Cause: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Cause: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Cause: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: path, Cause: err}
	}
	return nil
}

// LoadCampaignState 读取检查点,文件不存在时返回空状态
func LoadCampaignState(path string) (CampaignState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CampaignState{Completed: []string{}}, nil
		}
		return CampaignState{}, fmt.Errorf("读取检查点失败: %w", err)
	}

	var state CampaignState
	if err := state.FromJSON(data); err != nil {
		return CampaignState{}, fmt.Errorf("解析检查点失败: %w", err)
	}
	if state.Completed == nil {
		state.Completed = []string{}
	}
	return state, nil
}

// RemoveCampaignState 删除检查点文件,文件不存在时不报错
func RemoveCampaignState(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("删除检查点失败: %w", err)
	}
	return nil
}
