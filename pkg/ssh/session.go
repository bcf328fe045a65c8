package ssh

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// DefaultPromptSuffixes 常见网络设备提示符结尾
var DefaultPromptSuffixes = []string{"#", ">", "]"}

// Session 单次登录的交互式PTY会话
// 在一个 Shell 中串行执行多条命令，用启发式的提示符后缀分隔每条命令的输出
type Session struct {
	sess           *ssh.Session
	stdin          io.WriteCloser
	lineCh         chan string
	readDone       chan struct{}
	promptSuffixes []string
	// 首个提示符的主机名前缀，用于后续更稳健的提示符判断
	promptPrefix string
	cmdTimeout   time.Duration
	// 上一条已发送命令，用于跳过其延迟回显
	prevCmd string
}

// OpenSession 打开交互式Shell并等待首个提示符
func (c *Client) OpenSession(ctx context.Context, cmdTimeout time.Duration) (*Session, error) {
	sess, err := c.newSessionWithRetry()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	// 设置终端模式（启用回显，兼容网络设备CLI），并使用终端类型回退
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	var ptyErr error
	for _, term := range []string{"vt100", "xterm", "ansi", "dumb"} {
		if ptyErr = sess.RequestPty(term, 80, 24, modes); ptyErr == nil {
			break
		}
	}
	if ptyErr != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to request pty: %w", ptyErr)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to get stdin: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to get stdout: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to get stderr: %w", err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	s := &Session{
		sess:           sess,
		stdin:          stdin,
		lineCh:         make(chan string, 4096),
		readDone:       make(chan struct{}),
		promptSuffixes: DefaultPromptSuffixes,
		cmdTimeout:     cmdTimeout,
	}
	if s.cmdTimeout <= 0 {
		s.cmdTimeout = 30 * time.Second
	}

	go s.readLines(stdout, true)
	go s.readLines(stderr, false)

	// 发送 CRLF 促使设备输出当前提示符，便于后续检测（网络设备通常期望 CRLF）
	_, _ = stdin.Write([]byte("\r\n"))

	if err := s.waitFirstPrompt(ctx); err != nil {
		s.Close()
		return nil, err
	}
	// 等待横幅与诱发提示符输出静默并清空，避免第一条命令输出错位
	s.settle(300 * time.Millisecond)

	return s, nil
}

// readLines 持续读取输出并按行推送到通道
func (s *Session) readLines(r io.Reader, closeOnDone bool) {
	if closeOnDone {
		defer close(s.readDone)
	}
	buf := make([]byte, 2048)
	var acc strings.Builder
	for {
		n, err := r.Read(buf)
		if n > 0 {
			acc.Write(buf[:n])
			text := acc.String()
			// 统一换行符：仅将 CRLF -> \n；孤立 CR 去除，避免回车被误判为换行
			text = strings.ReplaceAll(text, "\r\n", "\n")
			text = strings.ReplaceAll(text, "\r", "")
			lines := strings.Split(text, "\n")
			// 保留最后一段（可能不完整）
			acc.Reset()
			acc.WriteString(lines[len(lines)-1])
			for i := 0; i < len(lines)-1; i++ {
				// 阻塞推送，避免丢失提示符；保留行内缩进（配置分段依赖缩进）
				s.lineCh <- lines[i]
			}
			// 提示符后设备不再输出换行，疑似提示符的尾部残段立即冲出
			if rem := sanitizeLine(acc.String()); rem != "" && hasPromptSuffix(rem, s.promptSuffixes) {
				acc.Reset()
				s.lineCh <- rem
			}
		}
		if err != nil {
			return
		}
	}
}

// stripControl 移除 ANSI 转义序列与不可见控制符（保留制表符）
func stripControl(s string) string {
	b := make([]rune, 0, len(s))
	skip := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if skip {
			// 跳过直到 CSI 序列的命令字符结尾
			if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') {
				skip = false
			}
			continue
		}
		if ch == 0x1b { // ESC
			skip = true
			continue
		}
		if ch < 0x20 && ch != '\t' {
			continue
		}
		b = append(b, rune(ch))
	}
	return string(b)
}

// sanitizeLine 清洗并去除首尾空白，便于稳定提示符检测
func sanitizeLine(s string) string {
	return strings.TrimSpace(stripControl(s))
}

// hasPromptSuffix 判断清洗后的文本是否以任一提示符后缀结尾
func hasPromptSuffix(line string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(line, suf) {
			return true
		}
	}
	return false
}

// isPrompt 判断行是否是提示符（先清洗再匹配后缀；若已捕获前缀，则要求包含前缀）
func (s *Session) isPrompt(line string) bool {
	trimmed := sanitizeLine(line)
	if trimmed == "" {
		return false
	}
	for _, suf := range s.promptSuffixes {
		if strings.HasSuffix(trimmed, suf) {
			if s.promptPrefix != "" {
				// 允许模式变化：例如 hostname(config)# 仍包含主机名片段
				if !strings.Contains(trimmed, s.promptPrefix) {
					continue
				}
			}
			return true
		}
	}
	return false
}

// stripPromptPrefix 剥离行首提示符前缀，提取可能的命令回显主体
func (s *Session) stripPromptPrefix(line string) string {
	clean := sanitizeLine(line)
	if clean == "" {
		return clean
	}
	last := -1
	for _, suf := range s.promptSuffixes {
		if idx := strings.LastIndex(clean, suf); idx > last {
			last = idx
		}
	}
	if last >= 0 && last+1 < len(clean) {
		return strings.TrimSpace(clean[last+1:])
	}
	return clean
}

// waitFirstPrompt 等待登录横幅后的首个提示符，并捕获主机名前缀
func (s *Session) waitFirstPrompt(ctx context.Context) error {
	// 提示符诱发：部分设备建立 PTY 后需键入回车才显示提示符
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-s.lineCh:
			if !s.isPrompt(line) {
				continue
			}
			trimmed := sanitizeLine(line)
			for _, suf := range s.promptSuffixes {
				if strings.HasSuffix(trimmed, suf) {
					if prefix := strings.TrimSpace(strings.TrimSuffix(trimmed, suf)); prefix != "" {
						s.promptPrefix = prefix
					}
					break
				}
			}
			return nil
		case <-ticker.C:
			if time.Since(start) > 10*time.Second {
				return fmt.Errorf("no prompt detected within 10s")
			}
			_, _ = s.stdin.Write([]byte("\r\n"))
		}
	}
}

// drain 丢弃通道中已到达的残留行
func (s *Session) drain() {
	for {
		select {
		case <-s.lineCh:
		default:
			return
		}
	}
}

// settle 持续丢弃输出直到静默满一个窗口，保证在途行全部清空
func (s *Session) settle(quiet time.Duration) {
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-s.lineCh:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(quiet)
		case <-timer.C:
			return
		}
	}
}

// Run 执行单条命令并收集输出直到下一个提示符
func (s *Session) Run(ctx context.Context, cmd string) (*CommandResult, error) {
	// 清空上一条命令（尤其是超时后）可能残留的行
	s.drain()
	if _, err := s.stdin.Write([]byte(cmd + "\r\n")); err != nil {
		return nil, fmt.Errorf("failed to write command: %w", err)
	}

	var out strings.Builder
	// 跳过命令回显（部分设备会回显命令，且可能因分页被拆分）
	echoRemain := strings.TrimSpace(cmd)
	cmdStart := time.Now()
	timeout := time.NewTimer(s.cmdTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case line := <-s.lineCh:
			clean := sanitizeLine(line)
			// “提示符+上一条命令”的延迟回显直接跳过
			if clean != "" && s.prevCmd != "" {
				candidate := strings.ToLower(s.stripPromptPrefix(clean))
				prev := strings.ToLower(strings.TrimSpace(s.prevCmd))
				if candidate != "" && (candidate == prev ||
					strings.HasPrefix(prev, candidate) || strings.HasPrefix(candidate, prev)) {
					continue
				}
			}
			// 提示符行为命令结束标志，不写入输出
			// （Run 前已清空残留，此处的提示符必然晚于命令写入）
			if s.isPrompt(clean) {
				s.prevCmd = cmd
				return &CommandResult{
					Command:  cmd,
					Output:   out.String(),
					Duration: time.Since(cmdStart),
				}, nil
			}
			// 处理当前命令回显：剥离提示符前缀，支持拆分到多行的回显
			if echoRemain != "" && clean != "" {
				candidate := s.stripPromptPrefix(clean)
				if candidate != "" && strings.HasPrefix(echoRemain, candidate) {
					echoRemain = strings.TrimSpace(strings.TrimPrefix(echoRemain, candidate))
					continue
				}
				if candidate != "" && strings.Contains(strings.ToLower(candidate), strings.ToLower(echoRemain)) {
					echoRemain = ""
					continue
				}
				echoRemain = ""
			}
			// 输出保留缩进，仅去除转义序列与行尾空白
			out.WriteString(strings.TrimRight(stripControl(line), " \t"))
			out.WriteString("\n")
		case <-timeout.C:
			// 超时保护：将当前已读作为输出返回
			s.prevCmd = cmd
			return &CommandResult{
				Command:  cmd,
				Output:   out.String(),
				Error:    "command timeout",
				Duration: time.Since(cmdStart),
			}, fmt.Errorf("command %q timed out after %s", cmd, s.cmdTimeout)
		}
	}
}

// Close 退出交互通道并关闭会话
func (s *Session) Close() error {
	_, _ = s.stdin.Write([]byte("exit\r\n"))
	time.Sleep(150 * time.Millisecond)
	_ = s.stdin.Close()
	select {
	case <-s.readDone:
	case <-time.After(1 * time.Second):
	}
	return s.sess.Close()
}
