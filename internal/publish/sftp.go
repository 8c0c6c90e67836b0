// Package publish 将主表上传到远程服务器
package publish

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 20
)

// SFTPConfig SFTP上传配置
type SFTPConfig struct {
	Enabled               bool   `mapstructure:"enabled" yaml:"enabled"`
	Host                  string `mapstructure:"host" yaml:"host"`
	Port                  int    `mapstructure:"port" yaml:"port"`
	User                  string `mapstructure:"user" yaml:"user"`
	Password              string `mapstructure:"password" yaml:"password"`
	KeyFile               string `mapstructure:"key_file" yaml:"key_file"`
	KnownHosts            string `mapstructure:"known_hosts" yaml:"known_hosts"`
	InsecureIgnoreHostKey bool   `mapstructure:"insecure_ignore_host_key" yaml:"insecure_ignore_host_key"`
	RemoteDir             string `mapstructure:"remote_dir" yaml:"remote_dir"`
	Timeout               int    `mapstructure:"timeout" yaml:"timeout"` // 秒
}

// Validate 验证配置
func (c SFTPConfig) Validate() error {
	if c.Host == "" || c.User == "" {
		return &models.ConfigError{Field: "publish.sftp", Reason: "缺少 host 或 user"}
	}
	if c.Password == "" && c.KeyFile == "" {
		return &models.ConfigError{Field: "publish.sftp", Reason: "需要 password 或 key_file"}
	}
	if c.KnownHosts == "" && !c.InsecureIgnoreHostKey {
		return &models.ConfigError{Field: "publish.sftp.known_hosts", Reason: "未配置 known_hosts 时必须显式启用 insecure_ignore_host_key"}
	}
	if c.Port < 0 || c.Port > 65535 {
		return &models.ConfigError{Field: "publish.sftp.port", Reason: fmt.Sprintf("端口无效: %d", c.Port)}
	}
	return nil
}

func (c SFTPConfig) address() string {
	port := c.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c SFTPConfig) remoteDir() string {
	if c.RemoteDir == "" {
		return "/"
	}
	return c.RemoteDir
}

// clientConfig 构建SSH客户端配置
func (c SFTPConfig) clientConfig() (*ssh.ClientConfig, error) {
	auth := make([]ssh.AuthMethod, 0, 2)
	if c.KeyFile != "" {
		key, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("读取私钥失败: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("解析私钥失败: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if c.KnownHosts != "" {
		cb, err := knownhosts.New(c.KnownHosts)
		if err != nil {
			return nil, fmt.Errorf("加载 known_hosts 失败: %w", err)
		}
		hostKey = cb
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         time.Duration(timeout) * time.Second,
	}, nil
}

// UploadFile 上传本地文件到远程目录,返回远程路径
func UploadFile(ctx context.Context, cfg SFTPConfig, localPath string) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", fmt.Errorf("本地文件不可用: %w", err)
	}

	sshCfg, err := cfg.clientConfig()
	if err != nil {
		return "", err
	}

	type dialResult struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialResult, 1)
	go func() {
		c, err := ssh.Dial("tcp", cfg.address(), sshCfg)
		ch <- dialResult{client: c, err: err}
	}()

	var sshClient *ssh.Client
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.client != nil {
				r.client.Close()
			}
		}()
		return "", fmt.Errorf("连接SFTP已取消: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("连接SFTP失败 [%s]: %w", cfg.address(), r.err)
		}
		sshClient = r.client
	}
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return "", fmt.Errorf("创建SFTP客户端失败: %w", err)
	}
	defer client.Close()

	dir := cfg.remoteDir()
	if err := client.MkdirAll(dir); err != nil {
		return "", fmt.Errorf("创建远程目录失败 [%s]: %w", dir, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("打开本地文件失败: %w", err)
	}
	defer src.Close()

	remotePath := path.Join(dir, filepath.Base(localPath))
	dst, err := client.Create(remotePath)
	if err != nil {
		return "", fmt.Errorf("创建远程文件失败 [%s]: %w", remotePath, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, src)
	if err != nil {
		return "", fmt.Errorf("上传文件失败: %w", err)
	}

	utils.Infof("📤 已上传 %s -> %s:%s (%d 字节)", filepath.Base(localPath), cfg.Host, remotePath, n)
	return remotePath, nil
}
