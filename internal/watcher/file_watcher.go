package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ai4free/internal/logger"
)

const (
	defaultSettleDelay  = 200 * time.Millisecond // 连续写入合并窗口
	logThrottleDuration = 5 * time.Second        // 日志节流时间间隔
)

var tempSuffixes = []string{".tmp", ".part", ".crdownload", ".download", ".swp", ".swx", ".swpx"}

// FileWatcher 监听单个文件的外部修改，合并短时间内的连续事件后回调
type FileWatcher struct {
	watcher     *fsnotify.Watcher
	target      string
	settleDelay time.Duration
	onChange    func(path string)

	stateMutex sync.Mutex
	timer      *time.Timer
	lastLogged time.Time
	done       chan struct{}
	closeOnce  sync.Once
}

// NewFileWatcher 创建文件监控器，settleDelay<=0 时使用默认合并窗口
func NewFileWatcher(target string, settleDelay time.Duration, onChange func(path string)) (*FileWatcher, error) {
	if strings.TrimSpace(target) == "" {
		return nil, fmt.Errorf("监控文件路径不能为空")
	}
	if onChange == nil {
		return nil, fmt.Errorf("变更回调不能为空")
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("解析监控文件路径失败: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settleDelay <= 0 {
		settleDelay = defaultSettleDelay
	}
	return &FileWatcher{
		watcher:     w,
		target:      filepath.Clean(abs),
		settleDelay: settleDelay,
		onChange:    onChange,
		done:        make(chan struct{}),
	}, nil
}

// Start 启动文件监控。监听的是所在目录，以便捕获临时文件重命名覆盖
func (fw *FileWatcher) Start() error {
	dir := filepath.Dir(fw.target)
	if err := fw.watcher.Add(dir); err != nil {
		logger.Error("添加目录监控失败: %s, 错误: %v", dir, err)
		return err
	}
	go fw.handleEvents()
	logger.Info("开始监控存储文件: %s", fw.target)
	return nil
}

// Close 关闭文件监控器
func (fw *FileWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		fw.stateMutex.Lock()
		if fw.timer != nil {
			fw.timer.Stop()
			fw.timer = nil
		}
		fw.stateMutex.Unlock()
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) handleEvents() {
	for {
		select {
		case <-fw.done:
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("文件监控错误: %v", err)
		}
	}
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	logger.Debug("收到文件事件: %s, 操作: %s", event.Name, event.Op.String())
	if !fw.isTargetFileEvent(event) {
		return
	}
	if fw.shouldLogFileEvent() {
		logger.Info("检测到存储文件变化: %s, 操作: %s", event.Name, event.Op.String())
	}
	fw.schedule()
}

func (fw *FileWatcher) isTargetFileEvent(event fsnotify.Event) bool {
	if isTempFile(event.Name) {
		return false
	}
	if filepath.Clean(event.Name) != fw.target {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

// schedule 重置合并定时器，窗口内无新事件后触发回调
func (fw *FileWatcher) schedule() {
	fw.stateMutex.Lock()
	defer fw.stateMutex.Unlock()
	select {
	case <-fw.done:
		return
	default:
	}
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.settleDelay, func() {
		select {
		case <-fw.done:
			return
		default:
		}
		fw.onChange(fw.target)
	})
}

func (fw *FileWatcher) shouldLogFileEvent() bool {
	fw.stateMutex.Lock()
	defer fw.stateMutex.Unlock()
	if time.Since(fw.lastLogged) > logThrottleDuration {
		fw.lastLogged = time.Now()
		return true
	}
	return false
}

func isTempFile(filePath string) bool {
	base := strings.ToLower(filepath.Base(filePath))
	if base == "" || base == "." || base == "/" {
		return false
	}
	for _, suffix := range tempSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return strings.Contains(base, ".tmp-")
}
