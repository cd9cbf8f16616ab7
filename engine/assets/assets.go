// Package assets indexes the on-disk asset tree and loads images and
// shader bytecode. A filesystem watcher keeps the index current so changed
// assets can be hot-reloaded.
package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/emberengine/ember/engine/core"
)

type Type uint8

const (
	TypeNone Type = iota
	TypeImage
	TypeShader
)

func typeOf(path string) Type {
	switch filepath.Ext(path) {
	case ".png", ".jpg", ".jpeg", ".bmp":
		return TypeImage
	case ".shader":
		return TypeShader
	default:
		return TypeNone
	}
}

type Info struct {
	Path     string
	Type     Type
	Modified time.Time
}

// ChangeFunc is invoked from the watcher goroutine when an indexed asset
// is created or rewritten.
type ChangeFunc func(info Info)

type Manager struct {
	root string

	mutex  sync.RWMutex
	assets map[string]Info

	watcher  *fsnotify.Watcher
	onChange ChangeFunc
	done     chan struct{}
	closed   bool
}

func NewManager() (*Manager, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("func NewManager: %w", err)
	}
	return &Manager{
		assets:  make(map[string]Info),
		watcher: watcher,
		done:    make(chan struct{}),
	}, nil
}

// Initialize indexes everything under root and starts watching it.
func (m *Manager) Initialize(root string) error {
	m.root = root
	go m.run()

	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return m.watcher.Add(path)
		}
		m.index(path, fi.ModTime())
		return nil
	})
	if err != nil {
		return fmt.Errorf("func Initialize: walking %s: %w", root, err)
	}

	core.LogInfo("asset manager watching %s (%d assets)", root, m.Count())
	return nil
}

// SetChangeCallback registers fn for asset create/write events.
func (m *Manager) SetChangeCallback(fn ChangeFunc) {
	m.mutex.Lock()
	m.onChange = fn
	m.mutex.Unlock()
}

func (m *Manager) Shutdown() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

// Lookup returns the indexed info for a path relative to the asset root.
func (m *Manager) Lookup(relative string) (Info, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	info, ok := m.assets[filepath.Join(m.root, relative)]
	return info, ok
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.assets)
}

func (m *Manager) index(path string, modified time.Time) {
	t := typeOf(path)
	if t == TypeNone {
		return
	}
	m.mutex.Lock()
	m.assets[path] = Info{Path: path, Type: t, Modified: modified}
	m.mutex.Unlock()
}

func (m *Manager) drop(path string) {
	m.mutex.Lock()
	delete(m.assets, path)
	m.mutex.Unlock()
}

func (m *Manager) run() {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleEvent(event)

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)

		case <-m.done:
			m.watcher.Close()
			return
		}
	}
}

func (m *Manager) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Remove != 0 {
		m.drop(event.Name)
		m.watcher.Remove(event.Name)
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	fi, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if fi.IsDir() {
		// New directories join the watch so assets created inside them
		// are picked up.
		if event.Op&fsnotify.Create != 0 {
			m.watcher.Add(event.Name)
		}
		return
	}

	m.index(event.Name, fi.ModTime())

	m.mutex.RLock()
	fn := m.onChange
	info, ok := m.assets[event.Name]
	m.mutex.RUnlock()
	if ok && fn != nil {
		core.LogDebug("asset changed: %s", event.Name)
		fn(info)
	}
}
