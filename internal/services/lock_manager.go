// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager 按 key（版本ID）提供进程内互斥锁，空闲的锁定期回收
type LockManager struct {
	locks       map[string]*LockInfo
	globalLock  sync.Mutex
	idleTimeout time.Duration

	cleanupTicker *time.Ticker
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex    sync.Mutex
	LastUsed time.Time
	// ReferenceCount 正在等待或持有该锁的协程数，大于 0 时不会被回收
	ReferenceCount int32
}

// NewLockManager 创建锁管理器，cleanupInterval <= 0 时不启动后台清理
func NewLockManager(idleTimeout, cleanupInterval time.Duration) *LockManager {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Minute
	}
	lm := &LockManager{
		locks:       make(map[string]*LockInfo),
		idleTimeout: idleTimeout,
		stopCh:      make(chan struct{}),
	}
	if cleanupInterval > 0 {
		lm.startCleanup(cleanupInterval)
	}
	return lm
}

func (lm *LockManager) acquire(key string) *LockInfo {
	lm.globalLock.Lock()
	info, exists := lm.locks[key]
	if !exists {
		info = &LockInfo{}
		lm.locks[key] = info
	}
	info.ReferenceCount++
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()

	info.Mutex.Lock()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	info.Mutex.Unlock()

	lm.globalLock.Lock()
	info.ReferenceCount--
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()
}

// ExecuteWithLock 在 key 对应的锁保护下执行 fn
func (lm *LockManager) ExecuteWithLock(key string, fn func() error) error {
	info := lm.acquire(key)
	defer lm.release(info)
	return fn()
}

// Size 当前持有的锁数量
func (lm *LockManager) Size() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.locks)
}

// Cleanup 回收空闲超过 idleTimeout 且无人引用的锁，返回回收数量
func (lm *LockManager) Cleanup(now time.Time) int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	removed := 0
	for key, info := range lm.locks {
		if info.ReferenceCount == 0 && now.Sub(info.LastUsed) > lm.idleTimeout {
			delete(lm.locks, key)
			removed++
		}
	}
	return removed
}

// 定期清理未使用的锁
func (lm *LockManager) startCleanup(interval time.Duration) {
	lm.cleanupTicker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case now := <-lm.cleanupTicker.C:
				lm.Cleanup(now)
			case <-lm.stopCh:
				return
			}
		}
	}()
}

// Stop 停止后台清理
func (lm *LockManager) Stop() {
	lm.stopOnce.Do(func() {
		if lm.cleanupTicker != nil {
			lm.cleanupTicker.Stop()
		}
		close(lm.stopCh)
	})
}
