package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

func TestSFTPConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SFTPConfig
		wantErr bool
	}{
		{"缺少主机", SFTPConfig{User: "u", Password: "p", InsecureIgnoreHostKey: true}, true},
		{"缺少凭据", SFTPConfig{Host: "h", User: "u", InsecureIgnoreHostKey: true}, true},
		{"未配置主机密钥校验", SFTPConfig{Host: "h", User: "u", Password: "p"}, true},
		{"端口越界", SFTPConfig{Host: "h", User: "u", Password: "p", InsecureIgnoreHostKey: true, Port: 70000}, true},
		{"密码认证", SFTPConfig{Host: "h", User: "u", Password: "p", InsecureIgnoreHostKey: true}, false},
		{"私钥与known_hosts", SFTPConfig{Host: "h", User: "u", KeyFile: "id_ed25519", KnownHosts: "known_hosts"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !models.IsConfigError(err) {
				t.Errorf("期望ConfigError, got %T", err)
			}
		})
	}
}

func TestSFTPConfig_Defaults(t *testing.T) {
	cfg := SFTPConfig{Host: "files.example.com"}
	if got := cfg.address(); got != "files.example.com:22" {
		t.Errorf("默认地址不匹配: got %s", got)
	}
	if got := cfg.remoteDir(); got != "/" {
		t.Errorf("默认远程目录不匹配: got %s", got)
	}
}

func TestUploadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "master.csv")
	if err := os.WriteFile(local, []byte("a,b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	valid := SFTPConfig{Host: "127.0.0.1", Port: 1, User: "u", Password: "p", InsecureIgnoreHostKey: true, Timeout: 2}

	t.Run("配置无效", func(t *testing.T) {
		_, err := UploadFile(context.Background(), SFTPConfig{}, local)
		if !models.IsConfigError(err) {
			t.Errorf("期望ConfigError, got %v", err)
		}
	})

	t.Run("本地文件不存在", func(t *testing.T) {
		_, err := UploadFile(context.Background(), valid, filepath.Join(dir, "missing.csv"))
		if err == nil || !strings.Contains(err.Error(), "本地文件不可用") {
			t.Errorf("期望本地文件错误, got %v", err)
		}
	})

	t.Run("私钥不存在", func(t *testing.T) {
		cfg := valid
		cfg.Password = ""
		cfg.KeyFile = filepath.Join(dir, "missing_key")
		_, err := UploadFile(context.Background(), cfg, local)
		if err == nil || !strings.Contains(err.Error(), "读取私钥失败") {
			t.Errorf("期望私钥错误, got %v", err)
		}
	})

	t.Run("上下文已取消", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := UploadFile(ctx, valid, local)
		if err == nil {
			t.Error("期望返回错误")
		}
	})
}
