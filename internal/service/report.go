package service

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/circuitinfopro/circuitinfopro/internal/config"
	"github.com/circuitinfopro/circuitinfopro/pkg/logger"
)

// NoCircuitPlaceholder 选择为空时写入报表的占位行
const NoCircuitPlaceholder = "No circuit interfaces detected on this device."

var siteDirRe = regexp.MustCompile(`[^0-9A-Za-z_.-]`)

// SanitizeSiteDir 站点名转目录名：非法字符替换为下划线，上限31字符
func SanitizeSiteDir(site string) string {
	safe := siteDirRe.ReplaceAllString(site, "_")
	if len(safe) > 31 {
		safe = safe[:31]
	}
	if safe == "" {
		safe = "Site"
	}
	return safe
}

// RenderDeviceDocument 将设备报告渲染为报表文本段
// 布局：电路块（块间空行）、vrf 摘要、逐 VRF 的 ARP/明细、QoS 块、CDP 邻居
func RenderDeviceDocument(r *DeviceReport) string {
	var b strings.Builder

	if len(r.CircuitBlocks) > 0 {
		for _, blk := range r.CircuitBlocks {
			for _, line := range blk.Lines {
				b.WriteString(line)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	} else {
		b.WriteString(NoCircuitPlaceholder)
		b.WriteString("\n\n")
	}

	if r.VRFSummary != "" {
		b.WriteString("! --- show vrf summary ---\n")
		writeText(&b, r.VRFSummary)
		b.WriteString("\n")
	}

	for _, v := range r.VRFNames {
		arp, ok := r.ARPByVRF[v]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "! show ip arp vrf %s\n", v)
		writeText(&b, arp)
		fmt.Fprintf(&b, "! show ip vrf %s\n", v)
		if det, ok := r.DetailByVRF[v]; ok {
			writeText(&b, det)
		}
		b.WriteString("\n")
	}

	if len(r.PolicyMaps) > 0 {
		b.WriteString("! --- QoS policy-map blocks ---\n")
		for _, blk := range r.PolicyMaps {
			for _, line := range blk {
				b.WriteString(line)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	if r.NeighborDetail != "" {
		b.WriteString("! --- show cdp neighbor detail ---\n")
		writeText(&b, r.NeighborDetail)
	}

	return b.String()
}

func writeText(b *strings.Builder, text string) {
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n")
}

// RenderFailureList 失败清单文本；全部可达时写入固定的提示行
func RenderFailureList(failed []FailedDeviceInfo) string {
	if len(failed) == 0 {
		return "All devices were reachable.\n"
	}
	var b strings.Builder
	for _, f := range failed {
		fmt.Fprintf(&b, "Site: %s\tHost: %s\tIP: %s\tReason: %s\n", f.Site, f.Host, f.Address, f.Reason)
	}
	return b.String()
}

// ReportWriter 报表落盘协作方：一次写入整轮运行的全部文档
type ReportWriter interface {
	WriteRun(ctx context.Context, stamp, backend string, reports []*DeviceReport, failed []FailedDeviceInfo) (string, error)
}

// NewReportWriter 根据配置创建委派写入器（本地或 MinIO，MinIO 失败回退本地）
func NewReportWriter(cfg *config.Config) ReportWriter {
	return &delegatingReportWriter{
		cfg:   cfg,
		minio: initMinioReportClient(cfg),
	}
}

type delegatingReportWriter struct {
	cfg   *config.Config
	minio *minioReportClient
}

// WriteRun 按站点目录写出各设备文档与失败清单
// 设备顺序跟随清单顺序；失败设备不产出内容文档，仅进失败清单
func (w *delegatingReportWriter) WriteRun(ctx context.Context, stamp, backend string, reports []*DeviceReport, failed []FailedDeviceInfo) (string, error) {
	if backend == "" {
		backend = w.cfg.Report.Backend
	}
	runDir := fmt.Sprintf("%s_%s", w.cfg.Report.Prefix, stamp)

	useMinio := strings.EqualFold(strings.TrimSpace(backend), "minio")
	if useMinio && w.minio == nil {
		logger.Warn("MinIO backend selected but client not initialized; falling back to local")
		useMinio = false
	}

	put := func(relPath, content string) error {
		if useMinio {
			if err := w.minio.put(ctx, path.Join(runDir, relPath), content); err != nil {
				logger.Warnf("MinIO write failed; falling back to local: %v", err)
				useMinio = false
				return w.writeLocal(runDir, relPath, content)
			}
			return nil
		}
		return w.writeLocal(runDir, relPath, content)
	}

	for _, r := range reports {
		if r.Failed() {
			continue
		}
		rel := filepath.Join(SanitizeSiteDir(r.Site), deviceFileName(r))
		if err := put(rel, RenderDeviceDocument(r)); err != nil {
			return "", fmt.Errorf("failed to write device report for %s: %w", r.Host, err)
		}
	}

	failureFile := fmt.Sprintf("unreachable_devices_%s.txt", stamp)
	if err := put(failureFile, RenderFailureList(failed)); err != nil {
		return "", fmt.Errorf("failed to write failure list: %w", err)
	}

	if useMinio {
		return "minio://" + path.Join(w.cfg.Storage.Minio.Bucket, runDir), nil
	}
	return filepath.Join(w.cfg.Report.BaseDir, runDir), nil
}

func (w *delegatingReportWriter) writeLocal(runDir, relPath, content string) error {
	full := filepath.Join(w.cfg.Report.BaseDir, runDir, relPath)
	if w.cfg.Report.MkdirIfMissing {
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return fmt.Errorf("failed to create report dir: %w", err)
		}
	}
	return os.WriteFile(full, []byte(content), 0644)
}

func deviceFileName(r *DeviceReport) string {
	return fmt.Sprintf("%s_%s.txt",
		siteDirRe.ReplaceAllString(r.Host, "_"),
		siteDirRe.ReplaceAllString(r.Address, "_"))
}

// minioReportClient MinIO 报表后端
type minioReportClient struct {
	cfg           *config.Config
	client        *minio.Client
	endpoint      string
	bucketEnsured bool
}

// initMinioReportClient 初始化 MinIO 客户端；配置不全或初始化失败返回 nil
func initMinioReportClient(cfg *config.Config) *minioReportClient {
	host := strings.TrimSpace(cfg.Storage.Minio.Host)
	port := cfg.Storage.Minio.Port
	if host == "" || port <= 0 {
		return nil
	}
	endpoint := fmt.Sprintf("%s:%d", host, port)

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.Storage.Minio.AccessKey, cfg.Storage.Minio.SecretKey, ""),
		Secure:    cfg.Storage.Minio.Secure,
		Transport: transport,
	})
	if err != nil {
		logger.Errorf("MinIO client initialization failed: %v", err)
		return nil
	}
	return &minioReportClient{cfg: cfg, client: client, endpoint: endpoint}
}

func (m *minioReportClient) put(ctx context.Context, objectName, content string) error {
	bucket := strings.TrimSpace(m.cfg.Storage.Minio.Bucket)
	if bucket == "" {
		return fmt.Errorf("minio bucket not configured")
	}
	if !m.bucketEnsured {
		if err := m.ensureBucket(ctx, bucket); err != nil {
			return fmt.Errorf("minio ensure bucket failed: %w", err)
		}
		m.bucketEnsured = true
	}
	data := []byte(content)
	_, err := m.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	if err != nil {
		return fmt.Errorf("minio put object failed: %w", err)
	}
	return nil
}

func (m *minioReportClient) ensureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
